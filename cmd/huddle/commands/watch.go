package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dyluth/huddle/internal/config"
	"github.com/dyluth/huddle/internal/eventbus"
	"github.com/dyluth/huddle/internal/filter"
	"github.com/dyluth/huddle/internal/printer"
	"github.com/dyluth/huddle/internal/watch"
	"github.com/spf13/cobra"
)

const defaultRedisURL = "redis://localhost:6379/0"

var (
	watchRoomID       string
	watchRedisURL     string
	watchInstanceName string
	watchOutputFormat string
	watchType         string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Monitor real-time room activity",
	Long: `Monitor room events as they are recorded by 'huddle run'.

Streams room creation, joins, provider registrations, artifacts, task lane
updates, messages and state changes from the Redis event bus.

Output Formats:
  default - Human-readable output with timestamps and emojis
  json    - Line-delimited JSON for programmatic processing

Examples:
  # Watch every room of the configured instance
  huddle watch

  # Watch one room on a specific instance
  huddle watch --instance prod --room 2f0c8a1e-...

  # Export task lane events as JSON
  huddle watch --type="TASK_*" --output=json > events.jsonl`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchRoomID, "room", "", "Room id to watch (all rooms if omitted)")
	watchCmd.Flags().StringVar(&watchRedisURL, "redis-url", "", "Redis URL (default from huddle.yml, then "+defaultRedisURL+")")
	watchCmd.Flags().StringVarP(&watchInstanceName, "instance", "n", "", "Instance namespace (default from huddle.yml)")
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format (default or json)")
	watchCmd.Flags().StringVar(&watchType, "type", "", "Filter by event type (glob pattern)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	outputFormat, err := watch.ParseOutputFormat(watchOutputFormat)
	if err != nil {
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", watchOutputFormat),
			[]string{"Valid formats: default, json"},
		)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	instanceName, redisURL := watchTarget(cfg)
	if err := config.ValidateInstanceName(instanceName); err != nil {
		return printer.Error("invalid instance name", err.Error(), nil)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := eventbus.NewClientFromURL(redisURL, instanceName)
	if err != nil {
		return printer.Error("invalid Redis URL", err.Error(), []string{"Use the form redis://host:port/db"})
	}
	defer client.Close()

	if err := client.Ping(ctx); err != nil {
		return printer.ErrorWithContext(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis at %s", redisURL),
			map[string]string{"Instance": instanceName},
			[]string{
				"Check that Redis is running",
				fmt.Sprintf("Point at another server:\n  huddle watch --redis-url %s", defaultRedisURL),
			},
		)
	}

	sub, err := client.Subscribe(ctx, watchRoomID)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer sub.Close()

	if outputFormat == watch.OutputFormatDefault {
		target := "all rooms"
		if watchRoomID != "" {
			target = "room " + watchRoomID
		}
		printer.Info("Watching %s on instance '%s' (Ctrl+C to stop)...\n", target, instanceName)
	}

	return watch.StreamEvents(ctx, sub, cmd.OutOrStdout(), watch.Options{
		Format: outputFormat,
		Filter: filter.Criteria{TypeGlob: watchType},
	})
}

// watchTarget resolves the instance and Redis URL, flags first.
func watchTarget(cfg *config.HuddleConfig) (instanceName, redisURL string) {
	instanceName = watchInstanceName
	if instanceName == "" {
		instanceName = cfg.Instance
	}

	redisURL = watchRedisURL
	if redisURL == "" && cfg.EventBusEnabled() {
		redisURL = cfg.Events.RedisURL
	}
	if redisURL == "" {
		redisURL = defaultRedisURL
	}
	return instanceName, redisURL
}
