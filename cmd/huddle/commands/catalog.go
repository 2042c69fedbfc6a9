package commands

import (
	"fmt"

	"github.com/dyluth/huddle/internal/catalog"
	"github.com/dyluth/huddle/internal/printer"
	"github.com/dyluth/huddle/internal/report"
	"github.com/spf13/cobra"
)

var catalogOutputFormat string

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List the provider catalog",
	Long: `List the providers every new room starts with.

The catalog comes from the providers section of huddle.yml, or the built-in
defaults when none are configured.`,
	Args: cobra.NoArgs,
	RunE: runCatalog,
}

func init() {
	catalogCmd.Flags().StringVarP(&catalogOutputFormat, "output", "o", "default", "Output format (default or jsonl)")
	rootCmd.AddCommand(catalogCmd)
}

func runCatalog(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	entries := catalog.New(cfg.CatalogEntries()).Snapshot()
	out := cmd.OutOrStdout()

	switch catalogOutputFormat {
	case "default":
		report.FormatCatalog(out, entries)
		return nil
	case "jsonl":
		return report.FormatJSONL(out, entries)
	default:
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", catalogOutputFormat),
			[]string{"Valid formats: default, jsonl"},
		)
	}
}
