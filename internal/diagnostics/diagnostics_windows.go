//go:build windows

package diagnostics

import (
	"os"

	"golang.org/x/sys/windows"
)

const windowsStillActive = 259

// processAlive opens the process with query-only rights and checks
// its exit code, the Windows substitute for a Unix signal-0 probe.
func processAlive(proc *os.Process) (bool, error) {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(proc.Pid))
	if err != nil {
		return false, nil
	}
	defer windows.CloseHandle(h)

	var code uint32
	if err := windows.GetExitCodeProcess(h, &code); err != nil {
		return false, err
	}
	return code == windowsStillActive, nil
}
