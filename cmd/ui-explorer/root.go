// Package main provides the entry point for the ui-explorer CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for ui-explorer.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ui-explorer",
		Short: "Automated QA oracle for running web applications",
		Long: `ui-explorer explores a running web application as a state graph: it
fingerprints every distinct page state, exercises every reachable link,
button, and form, and verifies declared side effects against the
application's own backend.

Runs are saved to a local history database so regressions between runs
can be detected with the compare command.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewExploreCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
