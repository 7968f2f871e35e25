package main

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rob-kingsbury/ui-explorer/internal/config"
)

//go:embed templates/ui-explorer.yaml
var configTemplate []byte

// NewInitCmd creates the init command, which writes a starter
// configuration file with every setting documented.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate a starter configuration file",
		Long: `Init writes a documented configuration file to the current directory.

The generated file contains every available setting with explanatory
comments, most of them commented out with sensible defaults. Edit it
to describe your application, then run 'ui-explorer explore'.

Examples:
  # Write .ui-explorer.yaml to the current directory
  ui-explorer init

  # Write to a specific path
  ui-explorer init -o ./configs/staging.yaml

  # Overwrite an existing file
  ui-explorer init --force`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Path for the generated configuration file")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite the file if it already exists")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if _, err := os.Stat(output); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", output)
	}

	if dir := filepath.Dir(output); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	if err := os.WriteFile(output, configTemplate, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", output)
	fmt.Fprintln(cmd.OutOrStdout(), "Edit it to describe your application, then run 'ui-explorer explore'.")

	return nil
}
