package daemonconn

import (
	"errors"
	"net"
	"syscall"
)

// StaleAddressDetector decides, on an I/O failure, whether the
// endpoint identity itself is invalid (the daemon at the recorded
// address is gone) as opposed to some other transient failure. It is a
// narrow capability interface so tests can inject any answer and the
// Connector can plug in different heuristics per transport kind.
type StaleAddressDetector interface {
	MaybeStaleAddress(err error) bool
}

// ErrnoDetector answers MaybeStaleAddress by checking whether err
// unwraps to one of a configured set of syscall errnos that, for a
// given transport kind, are known to mean "nothing is listening at
// this address anymore".
type ErrnoDetector struct {
	errnos []syscall.Errno
}

// NewUnixSocketDetector returns a detector tuned for Unix domain
// sockets: a stale entry typically manifests as ECONNREFUSED (nothing
// listening), ECONNRESET, EPIPE (broken pipe) or ENOENT (socket file
// gone).
func NewUnixSocketDetector() *ErrnoDetector {
	return &ErrnoDetector{errnos: []syscall.Errno{
		syscall.ECONNREFUSED,
		syscall.ECONNRESET,
		syscall.EPIPE,
		syscall.ENOENT,
	}}
}

// NewTCPDetector returns a detector tuned for TCP endpoints: a stale
// entry manifests as ECONNREFUSED or ECONNRESET (the port was reused
// by an unrelated process) but never ENOENT, which has no TCP analogue.
func NewTCPDetector() *ErrnoDetector {
	return &ErrnoDetector{errnos: []syscall.Errno{
		syscall.ECONNREFUSED,
		syscall.ECONNRESET,
	}}
}

// MaybeStaleAddress reports whether err indicates the remote endpoint
// no longer belongs to a live daemon.
func (d *ErrnoDetector) MaybeStaleAddress(err error) bool {
	if err == nil {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Timeout() {
		// A timeout says nothing about address validity either way.
		return false
	}
	for _, errno := range d.errnos {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}

var _ StaleAddressDetector = (*ErrnoDetector)(nil)
