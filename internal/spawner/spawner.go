// Package spawner starts a new daemon process, detached from the
// invoking mvndc process, and waits for it to publish a usable
// endpoint (spec §6's Spawner collaborator).
package spawner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/mvnd-go/mvndc/internal/execresult"
)

// DaemonBinaryName is the executable this package looks for when no
// explicit path is configured.
const DaemonBinaryName = "mvnddaemon"

// envDaemonPath overrides binary discovery, mirroring the teacher's
// CLAI_DAEMON_PATH escape hatch for development builds.
const envDaemonPath = "MVND_DAEMON_PATH"

// Spawner starts daemon processes and polls for their readiness.
type Spawner struct {
	// Probe reports whether a daemon is reachable at address. Injected
	// so tests can fake readiness without a real listener.
	Probe func(address string) bool
}

// New returns a Spawner that polls readiness with probe. There is no
// default probe: with a nil probe, StartAndWait never reports ready.
func New(probe func(address string) bool) *Spawner {
	return &Spawner{Probe: probe}
}

// Start launches a detached daemon process whose log output is
// appended to logFile, passing address as its listen endpoint.
// It returns once the process has been created; it does not wait for
// readiness (see StartAndWait).
func (s *Spawner) Start(ctx context.Context, address, logFile string) (pid int, err error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		return 0, fmt.Errorf("spawner: create log dir: %w", err)
	}

	binPath, err := findDaemonBinary()
	if err != nil {
		return 0, err
	}

	out, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		out, _ = os.Open(os.DevNull)
	}
	defer out.Close()

	daemonArgs := []string{"--listen", address}
	fmt.Fprintf(out, "spawning: %s\n", execresult.FormatCommand(binPath, daemonArgs))

	// binPath is always made absolute by findDaemonBinary, so there is
	// no relative-PATH lookup left for exec.Command to get wrong.
	cmd := exec.Command(binPath, daemonArgs...)
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.Stdin = nil
	setProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("spawner: start daemon: %w", err)
	}

	return cmd.Process.Pid, nil
}

// StartAndWait spawns the daemon and blocks until Probe reports it
// reachable at address, ctx is cancelled, or timeout elapses.
func (s *Spawner) StartAndWait(ctx context.Context, address, logFile string, timeout time.Duration) (pid int, err error) {
	pid, err = s.Start(ctx, address, logFile)
	if err != nil {
		return 0, err
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return pid, ctx.Err()
		case <-deadline.C:
			return pid, fmt.Errorf("spawner: daemon did not start within %v", timeout)
		case <-ticker.C:
			if s.Probe != nil && s.Probe(address) {
				return pid, nil
			}
		}
	}
}

func findDaemonBinary() (string, error) {
	if path := os.Getenv(envDaemonPath); path != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("spawner: resolve %s: %w", envDaemonPath, err)
		}
		if _, err := os.Stat(abs); err == nil {
			return abs, nil
		}
	}

	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), DaemonBinaryName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	if path, err := exec.LookPath(DaemonBinaryName); err == nil {
		if abs, absErr := filepath.Abs(path); absErr == nil {
			return abs, nil
		}
		return path, nil
	}

	return "", errors.New("spawner: daemon binary '" + DaemonBinaryName + "' not found")
}
