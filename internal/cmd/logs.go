package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mvnd-go/mvndc/internal/config"
	"github.com/mvnd-go/mvndc/internal/logtail"
)

var (
	logsFollow bool
	logsLines  int
)

var logsCmd = &cobra.Command{
	Use:     "logs <daemon-id>",
	Short:   "View a daemon's log file",
	GroupID: groupSetup,
	Args:    cobra.ExactArgs(1),
	Long: `View the log file of a single daemon by ID.

By default, shows the last 50 lines of the log file.
Use --follow to continuously monitor new log entries.

Examples:
  mvndc logs d-abc123              # Show last 50 lines
  mvndc logs d-abc123 -f           # Follow log output
  mvndc logs d-abc123 --lines=100  # Show last 100 lines`,
	RunE: runLogs,
}

func init() {
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output")
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 50, "Number of lines to show")
}

func runLogs(cmd *cobra.Command, args []string) error {
	paths := config.DefaultPaths()
	logFile := paths.DaemonLogFile(args[0])

	if _, err := os.Stat(logFile); err != nil {
		fmt.Printf("No log file found at: %s\n", logFile)
		return nil
	}

	if logsFollow {
		return followLogs(cmd.Context(), logFile)
	}
	return tailLogs(logFile, logsLines)
}

func tailLogs(filename string, n int) error {
	if n <= 0 {
		return fmt.Errorf("lines must be a positive number")
	}

	f, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat log file: %w", err)
	}

	size := stat.Size()
	if size == 0 {
		fmt.Println("Log file is empty.")
		return nil
	}

	lines, err := logtail.FromFile(f, size, n)
	if err != nil {
		return fmt.Errorf("failed to read log tail: %w", err)
	}

	for _, line := range lines {
		fmt.Println(line)
	}

	return nil
}

func followLogs(ctx context.Context, filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to end: %w", err)
	}

	fmt.Printf("Following %s (Ctrl+C to stop)...\n", filename)
	fmt.Println()

	reader := bufio.NewReader(f)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				if line != "" {
					fmt.Print(line)
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(100 * time.Millisecond):
				}
				continue
			}
			return fmt.Errorf("error reading log: %w", err)
		}

		fmt.Print(line)
	}
}
