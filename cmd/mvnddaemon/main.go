// mvnddaemon is the minimal reference daemon the mvndc client spawns
// and talks to. It speaks exactly the wire protocol internal/protocol
// describes: it accepts one build at a time, streams a handful of
// ProjectEvent/LogLine messages, issues one Prompt mid-build (when the
// request has arguments) so the PromptResponse relay has something to
// exercise, honors CancelBuild,
// and exits BuildFinished. It is not a Maven implementation — it
// exists so the client subsystem has a real peer to dial.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/mvnd-go/mvndc/internal/config"
	"github.com/mvnd-go/mvndc/internal/daemonconn"
	"github.com/mvnd-go/mvndc/internal/daemoninfo"
	"github.com/mvnd-go/mvndc/internal/protocol"
	"github.com/mvnd-go/mvndc/internal/registry"
	"github.com/mvnd-go/mvndc/internal/transport"
)

func main() {
	listen := flag.String("listen", "", "address to listen on (a unix socket path)")
	flag.Parse()

	if *listen == "" {
		fmt.Fprintln(os.Stderr, "mvnddaemon: --listen is required")
		os.Exit(2)
	}

	paths := config.DefaultPaths()
	if err := paths.EnsureDirectories(); err != nil {
		fmt.Fprintf(os.Stderr, "mvnddaemon: prepare directories: %v\n", err)
		os.Exit(1)
	}

	id := daemonID(*listen)
	logger := newLogger(paths, id)

	if err := run(*listen, id, paths, logger); err != nil {
		logger.Error("daemon exited with error", "error", err)
		os.Exit(1)
	}
}

func run(address, id string, paths *config.Paths, logger *slog.Logger) error {
	reg := registry.New(paths.RegistryFile(), paths.RegistryLockFile())

	params, err := config.LoadDaemonParameters(paths)
	if err != nil {
		logger.Warn("failed to load mvnd.yaml, using defaults", "error", err)
	}

	ln, err := transport.Listen(transport.KindUnix, address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", address, err)
	}
	defer ln.Close()

	info := daemoninfo.Info{
		ID:              id,
		PID:             os.Getpid(),
		Address:         address,
		ProtocolVersion: protocol.ProtocolVersion,
		RegisteredAt:    time.Now(),
		LastUsedAt:      time.Now(),
		State:           daemoninfo.StateIdle,
	}
	if err := reg.Register(info); err != nil {
		return fmt.Errorf("register with daemon registry: %w", err)
	}
	defer func() { _ = reg.Remove(id) }()

	logger.Info("daemon listening", "address", address, "pid", info.PID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
		case <-ctx.Done():
		}
		ln.Close()
		cancel()
	}()

	connCh := make(chan net.Conn)
	acceptErrCh := make(chan error, 1)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				acceptErrCh <- err
				return
			}
			connCh <- conn
		}
	}()

	idleTimeout := params.IdleTimeout
	lastActivity := time.Now()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-acceptErrCh:
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		case conn := <-connCh:
			handleConnection(conn, reg, id, params.KeepAlive, logger)
			lastActivity = time.Now()
		case <-ticker.C:
			if idleTimeout > 0 && time.Since(lastActivity) > idleTimeout {
				logger.Info("idle timeout reached, shutting down", "idle_timeout", idleTimeout)
				return nil
			}
		}
	}
}

// handleConnection runs one build to completion: receive BuildRequest,
// announce BuildStarted, stream a scripted sequence of project events
// (issuing one Prompt along the way and waiting for its reply), then
// BuildFinished. A
// CancelBuild observed at any point ends the build early with exit
// code 130, the conventional SIGINT exit status.
func handleConnection(conn net.Conn, reg *registry.Registry, id string, keepAlive time.Duration, logger *slog.Logger) {
	defer conn.Close()
	ft := daemonconn.NewFrameTransport(conn)

	first, err := ft.Receive()
	if err != nil {
		logger.Warn("receive build request", "error", err)
		return
	}
	req, ok := first.(protocol.BuildRequest)
	if !ok {
		logger.Warn("unexpected first frame", "kind", first.Kind())
		return
	}
	logger.Info("build started", "project_dir", req.ProjectDir, "args", req.Args)

	setState(reg, id, daemoninfo.StateBusy)
	defer setState(reg, id, daemoninfo.StateIdle)

	rawInbound := make(chan protocol.Message)
	go func() {
		defer close(rawInbound)
		for {
			m, err := ft.Receive()
			if err != nil {
				return
			}
			rawInbound <- m
		}
	}()

	var writeMu sync.Mutex
	write := func(m protocol.Message) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := ft.Dispatch(m); err != nil {
			return err
		}
		return ft.Flush()
	}

	if keepAlive > 0 {
		stopKeepAlive := make(chan struct{})
		defer close(stopKeepAlive)
		go func() {
			ticker := time.NewTicker(keepAlive)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if err := write(protocol.KeepAlive{}); err != nil {
						return
					}
				case <-stopKeepAlive:
					return
				}
			}
		}()
	}

	if err := write(protocol.BuildStarted{PID: int32(os.Getpid())}); err != nil {
		return
	}

	var cancelled atomic.Bool
	steps := []string{"validating project", "resolving dependencies", "compiling sources", "running tests"}

	for i, step := range steps {
		drainInbound(rawInbound, &cancelled)
		if cancelled.Load() {
			break
		}

		time.Sleep(120 * time.Millisecond)
		if err := write(protocol.ProjectEvent{Text: step}); err != nil {
			return
		}

		if i == 1 && len(req.Args) > 0 {
			if err := write(protocol.Prompt{Text: fmt.Sprintf("run target %q with a dirty working tree? [y/N]", req.Args[0])}); err != nil {
				return
			}
			reply, wasCancelled := awaitPromptReply(rawInbound, 5*time.Second)
			if wasCancelled {
				cancelled.Store(true)
				break
			}
			logger.Info("prompt answered", "reply", reply)
		}
	}

	drainInbound(rawInbound, &cancelled)

	exitCode := int32(0)
	if cancelled.Load() {
		logger.Info("build cancelled", "project_dir", req.ProjectDir)
		exitCode = 130
	} else {
		_ = write(protocol.LogLine{Text: fmt.Sprintf("BUILD SUCCESS in %s", req.ProjectDir)})
	}

	_ = write(protocol.BuildFinished{ExitCode: exitCode})
}

// drainInbound consumes every message currently queued on rawInbound
// without blocking, recording a CancelBuild in cancelled. A
// PromptResponse seen here (rather than via awaitPromptReply) is
// stale and is discarded.
func drainInbound(rawInbound <-chan protocol.Message, cancelled *atomic.Bool) {
	for {
		select {
		case m, ok := <-rawInbound:
			if !ok {
				return
			}
			if _, isCancel := m.(protocol.CancelBuild); isCancel {
				cancelled.Store(true)
			}
		default:
			return
		}
	}
}

// awaitPromptReply blocks for up to timeout for a PromptResponse,
// honoring an interleaved CancelBuild.
func awaitPromptReply(rawInbound <-chan protocol.Message, timeout time.Duration) (reply string, wasCancelled bool) {
	deadline := time.After(timeout)
	for {
		select {
		case m, ok := <-rawInbound:
			if !ok {
				return "", false
			}
			switch v := m.(type) {
			case protocol.PromptResponse:
				return v.Text, false
			case protocol.CancelBuild:
				return "", true
			}
		case <-deadline:
			return "", false
		}
	}
}

func setState(reg *registry.Registry, id string, state daemoninfo.State) {
	daemons, err := reg.List()
	if err != nil {
		return
	}
	for _, d := range daemons {
		if d.ID == id {
			d.State = state
			d.LastUsedAt = time.Now()
			_ = reg.Register(d)
			return
		}
	}
}

// daemonID recovers the registry ID the connector assigned when it
// named this daemon's socket (internal/transport.DefaultUnixSocketPath
// names it "<id>.sock").
func daemonID(address string) string {
	base := filepath.Base(address)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func newLogger(paths *config.Paths, id string) *slog.Logger {
	logFile := paths.DaemonLogFile(id)
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
