//go:build windows

package spawner

import (
	"os/exec"
	"syscall"
)

// setProcAttr detaches cmd into a new process group on Windows.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}
