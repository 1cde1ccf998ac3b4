//go:build !windows

package spawner

import (
	"os/exec"
	"syscall"
)

// setProcAttr detaches cmd into its own process group so it survives
// the parent mvndc process exiting.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}
