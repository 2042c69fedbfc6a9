package commands

import (
	"fmt"

	"github.com/dyluth/huddle/internal/scaffold"
	"github.com/spf13/cobra"
)

var (
	forceInit bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new huddle project",
	Long: `Initialize a new huddle project in the current directory.

Creates:
  • huddle.yml   - Room, driver, provider and event bus configuration
  • scenario.yml - Example session to replay with 'huddle run'

Use --force to reinitialize an existing project (WARNING: overwrites existing files).`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Force reinitialization (replaces huddle.yml and scenario.yml)")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	if err := scaffold.Initialize(".", forceInit); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	scaffold.PrintSuccess()
	return nil
}
