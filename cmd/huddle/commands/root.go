package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/dyluth/huddle/internal/config"
	"github.com/dyluth/huddle/internal/printer"
	"github.com/spf13/cobra"
)

const defaultConfigPath = "huddle.yml"

var configPath string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "huddle",
	Short: "Huddle - Local multi-agent collaboration rooms",
	Long: `Huddle runs local collaboration rooms where human and AI participants
share plans, patches and reviews, split work into task lanes and chat.

Sessions are scripted as scenario files and replayed against an in-memory
room store. Room events can be streamed over Redis to 'huddle watch'.`,
	// Prevent silent success when unknown flags are passed to root command
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	// Enable strict flag parsing - unknown flags will cause an error
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// Silence Cobra's default error and usage printing
	// We print formatted colored errors directly in the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to huddle.yml")
}

// loadConfig reads the configuration file. A missing huddle.yml at the
// default path falls back to the built-in defaults; a missing file given
// explicitly with --config is an error.
func loadConfig(cmd *cobra.Command) (*config.HuddleConfig, error) {
	explicit := cmd.Flags().Changed("config")

	if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) && !explicit {
		return config.Default(), nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, printer.ErrorWithContext(
			"invalid configuration",
			err.Error(),
			map[string]string{"Config": configPath},
			[]string{"Create a starter configuration:\n  huddle init"},
		)
	}
	return cfg, nil
}
