// Package connector implements the outer retry driver (spec §4.7):
// pick a daemon from the registry (spawning one if none is
// compatible), open a transport, wrap it in a daemonconn.Connection,
// run the build handshake, and retry against a different daemon on a
// stale-endpoint failure.
package connector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mvnd-go/mvndc/internal/daemonconn"
	"github.com/mvnd-go/mvndc/internal/daemoninfo"
	"github.com/mvnd-go/mvndc/internal/protocol"
	"github.com/mvnd-go/mvndc/internal/registry"
	"github.com/mvnd-go/mvndc/internal/spawner"
	"github.com/mvnd-go/mvndc/internal/transport"
)

// ProtocolVersion identifies the wire protocol this client speaks; a
// registry entry for a daemon speaking a different version is never a
// compatible candidate.
const ProtocolVersion = protocol.ProtocolVersion

// MaxRetries bounds the stale-address retry loop (spec §4.7 step 4).
const MaxRetries = 5

// BuildRequest describes the build to run, independent of the wire
// protocol.BuildRequest so callers don't need to import protocol just
// to start a build.
type BuildRequest struct {
	ProjectDir string
	Args       []string
	Env        []string
}

// EventHandler is invoked for every message received during a build,
// including BuildFinished.
type EventHandler func(msg protocol.Message)

// PromptHandler answers a Prompt message with the text to send back
// as a PromptResponse. It is how the `build` command relays a Prompt
// to the user's terminal and collects their reply.
type PromptHandler func(ctx context.Context, text string) (reply string, err error)

// Connector orchestrates one build attempt end to end.
type Connector struct {
	Registry *registry.Registry
	Spawner  *spawner.Spawner
	Params   daemoninfo.Parameters
	LogDir   string
	Logger   *slog.Logger
}

// New builds a Connector from its collaborators.
func New(reg *registry.Registry, spawn *spawner.Spawner, params daemoninfo.Parameters, logDir string, logger *slog.Logger) *Connector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Connector{Registry: reg, Spawner: spawn, Params: params, LogDir: logDir, Logger: logger}
}

// Run executes one build attempt, retrying against a freshly spawned
// or different registry candidate on StaleAddressError, up to
// MaxRetries times.
//
// cancelBuild, if non-nil, is watched for the duration of the attempt
// currently in flight: when it closes, Run dispatches CancelBuild to
// the daemon (spec §4.7 step 1, "User-initiated") instead of tearing
// the connection down itself. The caller decides when to close it
// (e.g. on the first Ctrl-C) and owns ctx for a harder abort.
func (c *Connector) Run(ctx context.Context, req BuildRequest, onEvent EventHandler, onPrompt PromptHandler, cancelBuild <-chan struct{}) (protocol.BuildFinished, error) {
	var lastErr error

	for attempt := 0; attempt <= MaxRetries; attempt++ {
		info, newDaemon, err := c.pickCandidate(ctx)
		if err != nil {
			return protocol.BuildFinished{}, fmt.Errorf("connector: select daemon: %w", err)
		}

		finished, err := c.attempt(ctx, info, newDaemon, req, onEvent, onPrompt, cancelBuild)
		if err == nil {
			return finished, nil
		}

		var staleErr *daemonconn.StaleAddressError
		if errors.As(err, &staleErr) {
			c.Logger.Warn("evicting stale daemon", "daemon_id", info.ID, "error", err)
			_ = c.Registry.Remove(info.ID)
			lastErr = err
			continue
		}

		return protocol.BuildFinished{}, err
	}

	return protocol.BuildFinished{}, fmt.Errorf("connector: exhausted %d retries: %w", MaxRetries, lastErr)
}

// pickCandidate returns a compatible daemon, spawning a new one if the
// registry holds none.
func (c *Connector) pickCandidate(ctx context.Context) (daemoninfo.Info, bool, error) {
	daemons, err := c.Registry.List()
	if err != nil {
		return daemoninfo.Info{}, false, err
	}

	for _, d := range daemons {
		if d.ProtocolVersion == ProtocolVersion {
			return d, false, nil
		}
	}

	return c.spawnDaemon(ctx)
}

func (c *Connector) spawnDaemon(ctx context.Context) (daemoninfo.Info, bool, error) {
	id := uuid.NewString()
	address := transport.DefaultUnixSocketPath(id)
	logFile := c.LogDir + "/" + id + ".log"

	pid, err := c.Spawner.StartAndWait(ctx, address, logFile, c.Params.ConnectTimeout)
	if err != nil {
		return daemoninfo.Info{}, false, fmt.Errorf("spawn daemon: %w", err)
	}

	info := daemoninfo.Info{
		ID:              id,
		PID:             pid,
		Address:         address,
		ProtocolVersion: ProtocolVersion,
		RegisteredAt:    time.Now(),
		State:           daemoninfo.StateStarting,
	}

	if err := c.Registry.Register(info); err != nil {
		return daemoninfo.Info{}, false, fmt.Errorf("register spawned daemon: %w", err)
	}

	return info, true, nil
}

// attempt opens a transport and connection against info and runs the
// full build handshake, forwarding every received message to onEvent.
func (c *Connector) attempt(ctx context.Context, info daemoninfo.Info, newDaemon bool, req BuildRequest, onEvent EventHandler, onPrompt PromptHandler, cancelBuild <-chan struct{}) (protocol.BuildFinished, error) {
	tr, detector, err := transport.DialTimeout(ctx, transport.KindUnix, info.Address, c.Params.ConnectTimeout)
	if err != nil {
		return protocol.BuildFinished{}, &daemonconn.StaleAddressError{Cause: err}
	}

	conn := daemonconn.New(tr, info, detector, c.Params, newDaemon, c.Logger)
	defer conn.Close()

	if cancelBuild != nil {
		done := make(chan struct{})
		defer close(done)
		go func() {
			select {
			case <-cancelBuild:
				if err := conn.Dispatch(context.Background(), protocol.CancelBuild{}); err != nil {
					c.Logger.Warn("dispatch cancel build", "error", err)
				}
			case <-done:
			}
		}()
	}

	buildReq := protocol.BuildRequest{ProjectDir: req.ProjectDir, Args: req.Args, Env: req.Env}
	if err := conn.Dispatch(ctx, buildReq); err != nil {
		return protocol.BuildFinished{}, err
	}

	for {
		batch, err := conn.Receive(ctx)
		if err != nil {
			return protocol.BuildFinished{}, err
		}

		for _, msg := range batch {
			if onEvent != nil {
				onEvent(msg)
			}

			if prompt, ok := msg.(protocol.Prompt); ok && onPrompt != nil {
				reply, err := onPrompt(ctx, prompt.Text)
				if err != nil {
					return protocol.BuildFinished{}, err
				}
				if err := conn.Enqueue(ctx, protocol.PromptResponse{Text: reply}); err != nil {
					return protocol.BuildFinished{}, err
				}
			}

			if finished, ok := msg.(protocol.BuildFinished); ok {
				return finished, nil
			}
		}
	}
}
