// Package transport builds daemonconn.Transport instances over the two
// endpoint kinds a DaemonInfo.Address can name: a Unix domain socket
// path, or a host:port TCP address. It also owns stale-socket cleanup
// and detector selection, since both are transport-kind-specific.
package transport

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/mvnd-go/mvndc/internal/daemonconn"
)

// Kind names which concrete transport an address resolves to.
type Kind int

const (
	KindUnix Kind = iota
	KindTCP
)

// DialTimeout establishes a connection to address and wraps it as a
// daemonconn.Transport, returning a StaleAddressDetector tuned for the
// given kind alongside it.
func DialTimeout(ctx context.Context, kind Kind, address string, timeout time.Duration) (daemonconn.Transport, daemonconn.StaleAddressDetector, error) {
	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	network := networkFor(kind)
	var d net.Dialer
	conn, err := d.DialContext(dctx, network, address)
	if err != nil {
		return nil, nil, fmt.Errorf("transport: dial %s %s: %w", network, address, err)
	}

	return daemonconn.NewFrameTransport(conn), detectorFor(kind), nil
}

// Probe reports whether address is currently reachable, without
// requiring a full Transport — used by the Spawner to poll for daemon
// readiness.
func Probe(kind Kind, address string) bool {
	conn, err := net.DialTimeout(networkFor(kind), address, 100*time.Millisecond)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

func networkFor(kind Kind) string {
	if kind == KindTCP {
		return "tcp"
	}
	return "unix"
}

func detectorFor(kind Kind) daemonconn.StaleAddressDetector {
	if kind == KindTCP {
		return daemonconn.NewTCPDetector()
	}
	return daemonconn.NewUnixSocketDetector()
}

// DefaultUnixSocketPath returns the path a freshly spawned daemon
// should listen on: $XDG_RUNTIME_DIR/mvnd/<id>.sock when set, falling
// back to $TMPDIR or /tmp, scoped per-user by UID the way a
// world-writable temp directory requires.
func DefaultUnixSocketPath(id string) string {
	name := id + ".sock"
	if xdg := os.Getenv("XDG_RUNTIME_DIR"); xdg != "" {
		return filepath.Join(xdg, "mvnd", name)
	}

	uid := strconv.Itoa(os.Getuid())
	if tmp := os.Getenv("TMPDIR"); tmp != "" {
		return filepath.Join(tmp, "mvnd-"+uid, name)
	}
	return filepath.Join("/tmp", "mvnd-"+uid, name)
}

// RemoveStaleSocket deletes a Unix socket file at path iff nothing
// answers a dial against it, so a crashed daemon's orphaned socket
// does not block the next daemon from binding the same path. It is a
// no-op for TCP addresses.
func RemoveStaleSocket(kind Kind, path string) error {
	if kind != KindUnix {
		return nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	conn, err := net.DialTimeout("unix", path, 100*time.Millisecond)
	if err == nil {
		_ = conn.Close()
		return fmt.Errorf("transport: socket %s is still active", path)
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("transport: remove stale socket %s: %w", path, err)
	}
	return nil
}

// EnsureSocketDir creates the parent directory for a Unix socket path
// with owner-only permissions, matching the registry/lock file
// convention elsewhere in this codebase.
func EnsureSocketDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o700)
}

// Listen opens a listener for address under the given kind. For a
// Unix socket it first clears any stale socket file and restricts
// permissions to owner read/write after binding.
func Listen(kind Kind, address string) (net.Listener, error) {
	if kind == KindTCP {
		return net.Listen("tcp", address)
	}

	if err := EnsureSocketDir(address); err != nil {
		return nil, fmt.Errorf("transport: create socket dir: %w", err)
	}
	if err := RemoveStaleSocket(kind, address); err != nil {
		return nil, err
	}

	l, err := net.Listen("unix", address)
	if err != nil {
		return nil, fmt.Errorf("transport: listen unix %s: %w", address, err)
	}
	if err := os.Chmod(address, 0o600); err != nil {
		l.Close()
		os.Remove(address)
		return nil, fmt.Errorf("transport: chmod socket: %w", err)
	}
	return l, nil
}
