package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mvnd-go/mvndc/internal/config"
	"github.com/mvnd-go/mvndc/internal/registry"
)

var stopCmd = &cobra.Command{
	Use:     "stop [daemon-id]",
	Short:   "Stop one or all known daemons",
	GroupID: groupSetup,
	Long: `Stop a daemon by ID, or every known daemon if none is given.

Each daemon is sent SIGTERM and given a grace period before being
escalated to SIGKILL; its registry entry is removed once it has
exited or been killed.

Examples:
  mvndc stop            # stop every known daemon
  mvndc stop d-abc123    # stop a single daemon`,
	RunE: runStop,
}

func runStop(cmd *cobra.Command, args []string) error {
	paths := config.DefaultPaths()
	reg := registry.New(paths.RegistryFile(), paths.RegistryLockFile())

	daemons, err := reg.List()
	if err != nil {
		return fmt.Errorf("stop: list daemons: %w", err)
	}

	if len(args) > 0 {
		id := args[0]
		for _, d := range daemons {
			if d.ID == id {
				return stopOne(reg, id, d.PID)
			}
		}
		return fmt.Errorf("stop: no known daemon %q", id)
	}

	if len(daemons) == 0 {
		fmt.Printf("%sno known daemons%s\n", colorDim, colorReset)
		return nil
	}

	var firstErr error
	for _, d := range daemons {
		if err := stopOne(reg, d.ID, d.PID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func stopOne(reg *registry.Registry, id string, pid int) error {
	fmt.Printf("Stopping %s...", id)
	if err := terminatePID(pid, 2*time.Second); err != nil {
		fmt.Printf(" %sfailed%s: %v\n", colorRed, colorReset, err)
		return err
	}
	if err := reg.Remove(id); err != nil {
		fmt.Printf(" %sfailed to update registry%s: %v\n", colorYellow, colorReset, err)
		return err
	}
	fmt.Printf(" %sstopped%s\n", colorGreen, colorReset)
	return nil
}

// terminatePID asks the process to shut down gracefully and waits up to
// timeout for it to exit before escalating to an unconditional kill.
// The graceful signal and the liveness probe are both platform
// specific (requestShutdown, processAlive).
func terminatePID(pid int, timeout time.Duration) error {
	if pid <= 0 {
		return nil
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	_ = requestShutdown(proc)

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		alive, err := processAlive(proc)
		if err != nil {
			return err
		}
		if !alive {
			return nil
		}
		time.Sleep(20 * time.Millisecond)
	}

	_ = proc.Kill()
	return nil
}
