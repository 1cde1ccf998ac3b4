// Package cmd wires the mvndc command tree.
package cmd

import (
	"github.com/spf13/cobra"
)

// Command group IDs.
const (
	groupCore  = "core"
	groupSetup = "setup"
)

var rootCmd = &cobra.Command{
	Use:   "mvndc",
	Short: "client for the mvnd build daemon",
	Long: `mvndc - client for the mvnd build daemon
  - forwards a build request to a background daemon
  - streams build events until the build finishes`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: groupCore, Title: "Core Commands:"},
		&cobra.Group{ID: groupSetup, Title: "Setup & Diagnostics:"},
	)

	rootCmd.AddCommand(buildCmd)

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(versionCmd)
}
