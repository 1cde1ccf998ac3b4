// Package daemoninfo holds the immutable descriptors the daemon client
// subsystem passes between the registry, the connector, and diagnostics.
// Nothing in this package performs I/O; it is pure data.
package daemoninfo

import "time"

// State describes where a daemon sits in its observed lifecycle, as far
// as the client can tell from the registry alone.
type State int

const (
	// StateUnknown is the zero value; never assigned deliberately.
	StateUnknown State = iota
	// StateStarting means the spawner launched the process but it has
	// not yet been confirmed listening.
	StateStarting
	// StateIdle means the daemon has registered and is reachable.
	StateIdle
	// StateBusy means the daemon is currently serving a build.
	StateBusy
	// StateStopped means the registry entry is known to be dead.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateIdle:
		return "idle"
	case StateBusy:
		return "busy"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Info is the immutable descriptor of a remote daemon. The Connection
// treats it as read-only metadata used only for diagnostics and for the
// registry to locate the daemon; it carries no behavior.
type Info struct {
	ID              string
	PID             int
	Address         string // opaque endpoint: a unix socket path or host:port
	ProtocolVersion int
	Locale          string
	WorkingDir      string
	RegisteredAt    time.Time
	LastUsedAt      time.Time
	State           State
}

// Parameters is immutable daemon configuration recognised by the core
// client subsystem. Loading it from the environment is an ambient
// concern (see config.LoadDaemonParameters); this type only models the
// recognised options.
type Parameters struct {
	// KeepAlive is the expected interval between liveness signals from
	// the daemon.
	KeepAlive time.Duration
	// MaxLostKeepAlive is the allowed multiple of KeepAlive before the
	// client declares the daemon dead.
	MaxLostKeepAlive int
	// ConnectTimeout bounds a single dial attempt.
	ConnectTimeout time.Duration
	// IdleTimeout is how long an idle daemon waits before exiting; it
	// is read by the reference daemon, not by the client core, but
	// travels with the rest of daemon configuration.
	IdleTimeout time.Duration
	// LogDir is where per-daemon diagnostic logs are written.
	LogDir string
}

// MaxKeepAliveMillis is the derived liveness budget: KeepAlive ×
// MaxLostKeepAlive, expressed in milliseconds because that is the unit
// the receive timeout error message (spec scenario 2) is worded in.
func (p Parameters) MaxKeepAliveMillis() int64 {
	return p.KeepAlive.Milliseconds() * int64(p.MaxLostKeepAlive)
}

// MaxKeepAlive is the derived liveness budget as a Duration.
func (p Parameters) MaxKeepAlive() time.Duration {
	return p.KeepAlive * time.Duration(p.MaxLostKeepAlive)
}
