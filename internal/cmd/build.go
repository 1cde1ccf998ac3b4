package cmd

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mvnd-go/mvndc/internal/config"
	"github.com/mvnd-go/mvndc/internal/connector"
	"github.com/mvnd-go/mvndc/internal/execresult"
	"github.com/mvnd-go/mvndc/internal/protocol"
	"github.com/mvnd-go/mvndc/internal/registry"
	"github.com/mvnd-go/mvndc/internal/spawner"
	"github.com/mvnd-go/mvndc/internal/transport"
)

var buildCmd = &cobra.Command{
	Use:     "build [args...]",
	Short:   "Run a build against the daemon",
	GroupID: groupCore,
	Long: `Forward a build request to a daemon, spawning one if none is
available, and stream its events until the build finishes.

A Ctrl+C during the build asks the daemon to cancel in place rather
than killing the client outright.

Examples:
  mvndc build
  mvndc build clean install`,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringVar(&colorMode, "color", "auto", "color output: auto, always, or never")
}

func runBuild(cmd *cobra.Command, args []string) error {
	applyColorMode()

	paths := config.DefaultPaths()
	if err := paths.EnsureDirectories(); err != nil {
		return fmt.Errorf("build: prepare directories: %w", err)
	}

	params, err := config.LoadDaemonParameters(paths)
	logLevel := slog.LevelWarn
	if err != nil {
		fmt.Fprintf(os.Stderr, "build: %s: using defaults: %v\n", paths.ConfigFile(), err)
	}

	reg := registry.New(paths.RegistryFile(), paths.RegistryLockFile())
	spawn := spawner.New(func(address string) bool {
		return transport.Probe(transport.KindUnix, address)
	})

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	conn := connector.New(reg, spawn, params, paths.LogDir(), logger)

	projectDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("build: resolve working directory: %w", err)
	}

	ctx, forceQuit := context.WithCancel(cmd.Context())
	defer forceQuit()

	cancelBuild := interruptOnce(ctx, forceQuit)

	req := connector.BuildRequest{
		ProjectDir: projectDir,
		Args:       args,
		Env:        os.Environ(),
	}

	finished, err := conn.Run(ctx, req, printBuildEvent, promptFromStdin, cancelBuild)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}

	return execresult.FromExitCode(int(finished.ExitCode)).AssertSuccess()
}

func printBuildEvent(msg protocol.Message) {
	switch m := msg.(type) {
	case protocol.BuildStarted:
		fmt.Printf("%sdaemon started worker pid %d%s\n", colorDim, m.PID, colorReset)
	case protocol.ProjectEvent:
		fmt.Printf("%s%s%s\n", colorCyan, m.Text, colorReset)
	case protocol.LogLine:
		fmt.Println(m.Text)
	case protocol.BuildFinished:
		if m.ExitCode == 0 {
			fmt.Printf("%sBUILD SUCCESS%s\n", colorGreen, colorReset)
		} else {
			fmt.Printf("%sBUILD FAILURE%s (exit code %d)\n", colorRed, colorReset, m.ExitCode)
		}
	}
}

// interruptOnce arranges for the first Ctrl+C (or SIGTERM) to close
// the returned channel, asking the connector to dispatch CancelBuild
// to the daemon in place (spec §4.7 step 1). A second signal calls
// forceQuit, cancelling ctx outright for a caller that refuses to
// wind down gracefully.
func interruptOnce(ctx context.Context, forceQuit context.CancelFunc) <-chan struct{} {
	cancelBuild := make(chan struct{})
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)
		for {
			select {
			case <-ctx.Done():
				return
			case <-sigCh:
				select {
				case <-cancelBuild:
					fmt.Fprintln(os.Stderr, "received second interrupt, forcing exit")
					forceQuit()
					return
				default:
					fmt.Fprintln(os.Stderr, "received interrupt, asking daemon to cancel...")
					close(cancelBuild)
				}
			}
		}
	}()

	return cancelBuild
}

// promptFromStdin relays a Prompt message to the terminal and reads
// back one line as the reply.
func promptFromStdin(ctx context.Context, text string) (string, error) {
	fmt.Printf("%s%s%s ", colorYellow, text, colorReset)
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("read prompt response: %w", err)
		}
		return "", nil
	}
	return scanner.Text(), nil
}
