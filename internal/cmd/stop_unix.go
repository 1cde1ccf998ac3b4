//go:build !windows

package cmd

import (
	"errors"
	"os"
	"syscall"
)

// requestShutdown sends SIGTERM, the graceful-shutdown signal the
// reference daemon's lifecycle loop listens for.
func requestShutdown(proc *os.Process) error {
	return proc.Signal(syscall.SIGTERM)
}

// processAlive probes liveness with signal 0, which delivers no
// signal but still reports ESRCH if the process is gone.
func processAlive(proc *os.Process) (bool, error) {
	err := proc.Signal(syscall.Signal(0))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, syscall.ESRCH) || errors.Is(err, os.ErrProcessDone) {
		return false, nil
	}
	return false, err
}
