package daemonconn

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/mvnd-go/mvndc/internal/protocol"
)

// Transport is a blocking duplex byte channel to one daemon endpoint.
// It is not safe for concurrent writers — callers must serialise
// Dispatch/Flush the way Connection does with its dispatch lock — but a
// concurrent reader and writer are supported, since the two halves are
// independent.
type Transport interface {
	// Dispatch encodes and writes one frame. It does not flush.
	Dispatch(m protocol.Message) error
	// Flush forces buffered bytes to the OS.
	Flush() error
	// Receive reads one frame. It returns (nil, io.EOF) on a clean
	// close from the peer.
	Receive() (protocol.Message, error)
	// Close is idempotent and unblocks a concurrent Receive.
	Close() error
}

// FrameTransport implements Transport over a net.Conn using the
// protocol package's frame codec. It is the one concrete Transport the
// rest of this repo ships; internal/transport constructs one per
// endpoint kind (Unix socket, TCP) and hands back the Transport
// interface.
type FrameTransport struct {
	conn net.Conn
	r    *bufio.Reader
	w    *bufio.Writer

	closeOnce sync.Once
	closeErr  error
}

// NewFrameTransport wraps an already-established connection.
func NewFrameTransport(conn net.Conn) *FrameTransport {
	return &FrameTransport{
		conn: conn,
		r:    bufio.NewReader(conn),
		w:    bufio.NewWriter(conn),
	}
}

func (t *FrameTransport) Dispatch(m protocol.Message) error {
	if err := protocol.Encode(t.w, m); err != nil {
		return err
	}
	return nil
}

func (t *FrameTransport) Flush() error {
	return t.w.Flush()
}

func (t *FrameTransport) Receive() (protocol.Message, error) {
	m, err := protocol.Decode(t.r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, err
	}
	return m, nil
}

func (t *FrameTransport) Close() error {
	t.closeOnce.Do(func() {
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}

var _ Transport = (*FrameTransport)(nil)
