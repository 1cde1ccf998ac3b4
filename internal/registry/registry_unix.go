//go:build !windows

package registry

import (
	"os"
	"syscall"
)

// lockExclusive blocks until it holds an exclusive flock(2) on f. The
// registry is a low-contention file touched briefly per invocation, so
// this has no need for a non-blocking fast path.
func lockExclusive(f *os.File) error {
	return syscall.Flock(int(f.Fd()), syscall.LOCK_EX)
}

func unlockFile(f *os.File) error {
	return syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
}
