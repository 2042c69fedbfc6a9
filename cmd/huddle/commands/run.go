package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dyluth/huddle/internal/catalog"
	"github.com/dyluth/huddle/internal/config"
	"github.com/dyluth/huddle/internal/eventbus"
	"github.com/dyluth/huddle/internal/filter"
	"github.com/dyluth/huddle/internal/printer"
	"github.com/dyluth/huddle/internal/report"
	"github.com/dyluth/huddle/internal/resolver"
	"github.com/dyluth/huddle/internal/scenario"
	"github.com/dyluth/huddle/internal/store"
	"github.com/dyluth/huddle/internal/timespec"
	"github.com/dyluth/huddle/pkg/room"
	"github.com/spf13/cobra"
)

var (
	runOutputFormat string
	runSince        string
	runUntil        string
	runType         string
	runParticipant  string
)

var runCmd = &cobra.Command{
	Use:   "run SCENARIO",
	Short: "Replay a scenario against a fresh room",
	Long: `Replay a scenario file step by step against an in-memory room store,
then print the step results, the room summary and the room's event log.

Output Formats:
  default - Step results, summary table and event table
  json    - Room snapshot, summary and events as one JSON document
  jsonl   - Line-delimited JSON, one event per line

Event Filters:
  --since        - Show events after this time (duration or RFC3339)
  --until        - Show events before this time (duration or RFC3339)
  --type         - Filter by event type (glob pattern: "TASK_*")
  --participant  - Filter by participant id

When events.redis_url is configured, every recorded event is also
published to Redis for 'huddle watch'.

Examples:
  # Replay the example scenario
  huddle run scenario.yml

  # Only show message events as JSONL
  huddle run scenario.yml --type="MESSAGE_*" --output=jsonl`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runOutputFormat, "output", "o", "default", "Output format: default, json or jsonl")
	runCmd.Flags().StringVar(&runSince, "since", "", "Show events after time (duration or RFC3339)")
	runCmd.Flags().StringVar(&runUntil, "until", "", "Show events before time (duration or RFC3339)")
	runCmd.Flags().StringVar(&runType, "type", "", "Filter by event type (glob pattern)")
	runCmd.Flags().StringVar(&runParticipant, "participant", "", "Filter by participant id (exact match)")
	rootCmd.AddCommand(runCmd)
}

// reportOptions selects what replay prints.
type reportOptions struct {
	Format   string // default, json or jsonl
	Criteria filter.Criteria
}

// runReport is the document written by --output=json.
type runReport struct {
	Room    *room.Room       `json:"room"`
	Summary room.Summary     `json:"summary"`
	Events  []room.RoomEvent `json:"events"`
}

func runRun(cmd *cobra.Command, args []string) error {
	switch runOutputFormat {
	case "default", "json", "jsonl":
	default:
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", runOutputFormat),
			[]string{"Valid formats: default, json, jsonl"},
		)
	}

	since, until, err := timespec.ParseRange(runSince, runUntil)
	if err != nil {
		return printer.Error("invalid time filter", err.Error(), []string{
			"Use a duration (30m, 2h) or an RFC3339 timestamp",
		})
	}
	opts := reportOptions{
		Format:   runOutputFormat,
		Criteria: filter.Criteria{Since: since, Until: until, TypeGlob: runType, ParticipantID: runParticipant},
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	sc, err := scenario.Load(args[0])
	if err != nil {
		return printer.ErrorWithContext("invalid scenario", err.Error(), map[string]string{"Scenario": args[0]}, nil)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return replay(ctx, cfg, sc, opts, cmd.OutOrStdout())
}

// replay runs sc against a store built from cfg and writes the report to
// out. The report is written even when a step fails, so the room state at
// the failing step can be inspected.
func replay(ctx context.Context, cfg *config.HuddleConfig, sc *scenario.Scenario, ro reportOptions, out io.Writer) error {
	opts := cfg.StoreOptions()

	if cfg.EventBusEnabled() {
		client, err := eventbus.NewClientFromURL(cfg.Events.RedisURL, cfg.Instance)
		if err != nil {
			return printer.Error("invalid event bus configuration", err.Error(), nil)
		}
		defer client.Close()

		if err := client.Ping(ctx); err != nil {
			return printer.ErrorWithContext(
				"Redis connection failed",
				fmt.Sprintf("Could not connect to Redis at %s", cfg.Events.RedisURL),
				nil,
				[]string{"Check that Redis is running", "Remove events.redis_url from huddle.yml to run without the event bus"},
			)
		}

		publisher := eventbus.NewAsyncPublisher(client, cfg.Events.QueueSize, nil)
		// Runs before client.Close so queued events are flushed first
		defer publisher.Close()
		opts = append(opts, store.WithPublisher(publisher))
	}

	if ro.Format == "default" {
		printer.Step("Replaying %d steps\n", len(sc.Steps))
	}

	s := store.New(catalog.New(cfg.CatalogEntries()), opts...)
	result, runErr := scenario.NewRunner(s, log.Default()).Run(ctx, sc)
	if result == nil {
		return printer.Error("scenario failed", runErr.Error(), nil)
	}

	if err := writeReport(out, s, result, ro); err != nil {
		return err
	}

	var ambErr *resolver.AmbiguousError
	switch {
	case runErr == nil:
		return nil
	case errors.As(runErr, &ambErr):
		return printer.Error("unresolved reference", resolver.FormatAmbiguousError(ambErr), []string{
			"Bind the entity with 'as:' in an earlier step",
		})
	case resolver.IsNotFoundError(runErr):
		return printer.Error("unresolved reference", runErr.Error(), []string{
			"Bind the entity with 'as:' in an earlier step",
			"Use a display name or at least 6 characters of the id",
		})
	default:
		return printer.RoomError("Scenario", runErr)
	}
}

func writeReport(out io.Writer, s *store.Store, result *scenario.Result, ro reportOptions) error {
	events, err := s.Events(result.RoomID, ro.Criteria)
	if err != nil {
		return err
	}

	switch ro.Format {
	case "json":
		rm, err := s.GetRoom(result.RoomID)
		if err != nil {
			return err
		}
		summary, err := s.SummarizeRoom(rm.ID)
		if err != nil {
			return err
		}
		return report.FormatSingleJSON(out, runReport{Room: rm, Summary: summary, Events: events})

	case "jsonl":
		return report.FormatJSONL(out, events)

	default:
		summary, err := s.SummarizeRoom(result.RoomID)
		if err != nil {
			return err
		}
		report.FormatSteps(out, result)
		fmt.Fprintln(out)
		report.FormatSummary(out, summary)
		fmt.Fprintln(out)
		if ro.Criteria.HasFilters() {
			fmt.Fprintf(out, "Events (filtered, %d shown):\n", len(events))
		}
		report.FormatEventsTable(out, events, time.Now())
		return nil
	}
}
