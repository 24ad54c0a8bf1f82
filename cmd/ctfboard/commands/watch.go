package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dyluth/ctfboard/internal/config"
	"github.com/dyluth/ctfboard/internal/printer"
	"github.com/dyluth/ctfboard/internal/store"
	"github.com/dyluth/ctfboard/internal/watch"
)

var watchOutputFormat string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream board events as they happen",
	Long: `Stream board mutations published by a running bot.

Requires the Redis mirror (redis.url in ctfboard.yml or REDIS_URL).

Output Formats:
  default - Human-readable output with timestamps and emojis
  json    - Line-delimited JSON for programmatic processing

Examples:
  ctfboard watch
  ctfboard watch --output=json > events.jsonl`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format (default or json)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	format, err := watch.ParseOutputFormat(watchOutputFormat)
	if err != nil {
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", watchOutputFormat),
			[]string{"Valid formats: default, json"},
		)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return printer.Error(
			"cannot load configuration",
			fmt.Sprintf("Error: %v", err),
			[]string{"Create one with:\n  ctfboard init"},
		)
	}

	redisURL := cfg.RedisURL()
	if redisURL == "" {
		return printer.Error(
			"redis mirror disabled",
			"Board events are only published through Redis.",
			[]string{"Set redis.url in ctfboard.yml or export REDIS_URL"},
		)
	}

	client, err := store.NewClientFromURL(redisURL, cfg.Bot.Guild)
	if err != nil {
		return fmt.Errorf("failed to create store client: %w", err)
	}
	defer client.Close()

	if err := client.Ping(ctx); err != nil {
		return printer.Error(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis: %v", err),
			[]string{"Check that Redis is running and redis.url is correct"},
		)
	}

	sub, err := client.SubscribeEvents(ctx)
	if err != nil {
		return err
	}
	defer sub.Close()

	printer.Step("Watching board events for guild %s\n", cfg.Bot.Guild)
	return watch.StreamEvents(ctx, sub, format, cmd.OutOrStdout())
}
