//go:build windows

package cmd

import (
	"os"

	"golang.org/x/sys/windows"
)

// windowsStillActive is STILL_ACTIVE, the exit code GetExitCodeProcess
// reports for a process that has not yet exited.
const windowsStillActive = 259

// requestShutdown sends CTRL_BREAK_EVENT. It only reaches the target
// process if that process was launched in its own process group
// (spawner's Windows attach uses CREATE_NEW_PROCESS_GROUP), which is
// how the reference daemon is always started.
func requestShutdown(proc *os.Process) error {
	return windows.GenerateConsoleCtrlEvent(windows.CTRL_BREAK_EVENT, uint32(proc.Pid))
}

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
