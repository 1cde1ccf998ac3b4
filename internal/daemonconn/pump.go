package daemonconn

import (
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/mvnd-go/mvndc/internal/protocol"
)

// errSlot is an at-most-once, compare-and-set, first-writer-wins error
// holder. It backs Connection.terminalError: set is cheap to call from
// a failing pump and a racing close without ever clobbering whichever
// error got there first.
type errSlot struct {
	mu  sync.Mutex
	err error
}

// trySet stores err if nothing has been stored yet. Returns whether
// this call was the one that stored it.
func (s *errSlot) trySet(err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false
	}
	s.err = err
	return true
}

func (s *errSlot) get() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// runPump is the Receive Pump (spec §4.3): a loop owned by Connection
// that drains the Transport into the bounded queue until the Transport
// reports a clean EOF, a terminal error, or close() asks it to stop.
//
// On a message: blocking put into the queue (backpressure — the caller
// must not silently drop messages, so a slow caller throttles the
// daemon at the transport layer).
//
// On a failure: if the connection is still "running", the first error
// wins the terminalError slot (compare-and-set); if a shutdown is
// already in progress, the error is swallowed — that race is benign by
// contract, since the caller is already tearing the connection down.
func (c *Connection) runPump() {
	defer close(c.pumpDone)

	for c.running.Load() {
		m, err := c.transport.Receive()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			if c.running.Load() {
				if c.terminalError.trySet(err) {
					c.logger.Debug("receive pump stored terminal error", "error", err)
				}
			}
			return
		}

		c.logger.Debug("receive pump read frame", logKind(m))

		select {
		case c.queue <- m:
		case <-c.stopPump:
			return
		}
	}
}

// logKind is a small helper so pump/connection logging doesn't need to
// import protocol at every call site just to stringify a Kind.
func logKind(m protocol.Message) slog.Attr {
	return slog.String("kind", m.Kind().String())
}
