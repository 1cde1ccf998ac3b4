//go:build windows

package registry

import (
	"os"

	"golang.org/x/sys/windows"
)

// lockExclusive blocks until it holds an exclusive lock on f via
// LockFileEx, the Windows analogue of flock(2). The registry lock is
// acquired and released many times over the file's lifetime, which
// LockFileEx supports directly.
func lockExclusive(f *os.File) error {
	h := windows.Handle(f.Fd())
	var overlapped windows.Overlapped
	return windows.LockFileEx(h, windows.LOCKFILE_EXCLUSIVE_LOCK, 0, 1, 0, &overlapped)
}

func unlockFile(f *os.File) error {
	h := windows.Handle(f.Fd())
	var overlapped windows.Overlapped
	return windows.UnlockFileEx(h, 0, 1, 0, &overlapped)
}
