//go:build !windows

package diagnostics

import (
	"errors"
	"os"
	"syscall"
)

// processAlive probes liveness with signal 0, the standard Unix idiom
// for checking a pid without actually signalling it.
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
