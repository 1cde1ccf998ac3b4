package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mvnd-go/mvndc/internal/config"
	"github.com/mvnd-go/mvndc/internal/daemoninfo"
	"github.com/mvnd-go/mvndc/internal/diagnostics"
	"github.com/mvnd-go/mvndc/internal/registry"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show known daemons and their health",
	GroupID: groupSetup,
	Long: `Show every daemon this client knows about, whether its process
looks alive, and a tail of its log file.

Examples:
  mvndc status`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&colorMode, "color", "auto", "color output: auto, always, or never")
}

func runStatus(cmd *cobra.Command, args []string) error {
	applyColorMode()

	paths := config.DefaultPaths()
	reg := registry.New(paths.RegistryFile(), paths.RegistryLockFile())

	daemons, err := reg.List()
	if err != nil {
		return fmt.Errorf("status: list daemons: %w", err)
	}

	fmt.Printf("%smvndc status%s\n", colorBold, colorReset)
	fmt.Println(strings.Repeat("-", 40))

	if len(daemons) == 0 {
		fmt.Printf("%sno known daemons%s\n", colorDim, colorReset)
		return nil
	}

	for _, d := range daemons {
		printDaemonSummary(d)
		fmt.Println(diagnostics.Render(reg, paths.DaemonLogFile(d.ID), d.ID))
	}

	return nil
}

func printDaemonSummary(d daemoninfo.Info) {
	stateColor := colorGreen
	switch d.State {
	case daemoninfo.StateStopped, daemoninfo.StateUnknown:
		stateColor = colorDim
	case daemoninfo.StateBusy:
		stateColor = colorYellow
	}
	fmt.Printf("%s %-36s %s%s%s\n", colorBold, d.ID, stateColor, d.State, colorReset)
}
