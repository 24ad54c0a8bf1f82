package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dyluth/ctfboard/internal/config"
	"github.com/dyluth/ctfboard/internal/ctfnote"
	"github.com/dyluth/ctfboard/internal/discord"
	"github.com/dyluth/ctfboard/internal/export"
	"github.com/dyluth/ctfboard/internal/health"
	"github.com/dyluth/ctfboard/internal/logging"
	"github.com/dyluth/ctfboard/internal/metrics"
	"github.com/dyluth/ctfboard/internal/printer"
	"github.com/dyluth/ctfboard/internal/publisher"
	"github.com/dyluth/ctfboard/internal/router"
	"github.com/dyluth/ctfboard/internal/store"
	"github.com/dyluth/ctfboard/pkg/board"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot",
	Long: `Connect to Discord, register the slash commands for the configured guild
and serve them until interrupted.

Secrets are read from the environment:
  CTFBOARD_BOT_TOKEN  bot token (required)
  CTFNOTE_ADMIN_PASS  CTFNote admin password (when ctfnote is enabled)
  REDIS_URL           board mirror, overrides redis.url`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// app holds every long-lived component of a running bot.
type app struct {
	cfg       *config.Config
	registry  *prometheus.Registry
	store     *store.Client
	publisher *publisher.Publisher
	router    *router.Router
	bot       *discord.Bot
	health    *health.Server
}

// newApp wires the components around a Discord session without connecting
// anything except Redis.
func newApp(ctx context.Context, cfg *config.Config, s *discordgo.Session) (*app, error) {
	a := &app{cfg: cfg, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rec := metrics.NewRecorder(a.registry)

	checks := map[string]health.Check{}
	pubOpts := []publisher.Option{publisher.WithMetrics(rec)}
	deps := router.Deps{Metrics: rec}

	if url := cfg.RedisURL(); url != "" {
		client, err := store.NewClientFromURL(url, cfg.Bot.Guild)
		if err != nil {
			return nil, fmt.Errorf("failed to create store client: %w", err)
		}
		if err := client.Ping(ctx); err != nil {
			client.Close()
			return nil, fmt.Errorf("redis not accessible: %w", err)
		}
		a.store = client
		checks["redis"] = client.Ping
		pubOpts = append(pubOpts, publisher.WithMirror(client))
		deps.Events = client
	}

	guild := discord.NewGuild(s, cfg.Bot.Guild)
	sb := board.New()
	a.publisher = publisher.New(sb, guild, cfg.Mgmt.TranscriptChannel, cfg.Mgmt.RenderInterval, pubOpts...)

	deps.Channels = guild
	deps.Display = a.publisher
	deps.Exporter = export.NewExporter(guild, cfg.Export.Dir, cfg.Mgmt.TranscriptChannel)
	if cfg.NotesEnabled() {
		deps.Notes = ctfnote.NewClient(cfg.CTFNote.URL, cfg.CTFNote.AdminLogin, cfg.Secrets.CTFNoteAdminPass)
	}

	a.router = router.New(ctx, router.Config{
		Categories:   cfg.Mgmt.Categories,
		PlayerRole:   cfg.Mgmt.PlayerRole,
		AdminRole:    cfg.Mgmt.AdminRole,
		SolvedPrefix: cfg.Mgmt.SolvedPrefix,
	}, sb, deps)

	a.bot = discord.NewBot(ctx, s, cfg.Bot.ClientID, cfg.Bot.Guild, discord.Commands(cfg.Mgmt.Categories), a.router)
	checks["discord"] = a.bot.Check
	a.health = health.NewServer(cfg.Health.Addr, checks, a.registry)
	return a, nil
}

// run connects to Discord and blocks until ctx is done.
func (a *app) run(ctx context.Context) error {
	log := logging.For("serve")

	if err := a.health.Start(); err != nil {
		return err
	}
	if err := a.bot.Open(ctx); err != nil {
		return err
	}
	logging.LogEvent(log, "bot_started", logrus.Fields{
		"guild":      a.cfg.Bot.Guild,
		"categories": len(a.cfg.Mgmt.Categories),
		"ctfnote":    a.cfg.NotesEnabled(),
		"redis":      a.store != nil,
	})

	<-ctx.Done()
	logging.LogEvent(log, "bot_stopping", nil)
	return a.close()
}

func (a *app) close() error {
	a.publisher.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var firstErr error
	if err := a.bot.Close(); err != nil {
		firstErr = fmt.Errorf("failed to close discord session: %w", err)
	}
	if err := a.health.Shutdown(shutdownCtx); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to stop health server: %w", err)
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close store: %w", err)
		}
	}
	return firstErr
}

func loadServeConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, printer.Error(
			"cannot load configuration",
			fmt.Sprintf("Error: %v", err),
			[]string{"Create one with:\n  ctfboard init"},
		)
	}
	if cfg.Secrets.BotToken == "" {
		return nil, printer.Error(
			"bot token missing",
			"CTFBOARD_BOT_TOKEN is not set.",
			[]string{"Export the token of your Discord application:\n  export CTFBOARD_BOT_TOKEN=..."},
		)
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadServeConfig(configPath)
	if err != nil {
		return err
	}
	if err := logging.Setup(cfg.Log.Level, os.Stderr); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := discord.NewSession(cfg.Secrets.BotToken)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, s)
	if err != nil {
		return printer.Error(
			"startup failed",
			fmt.Sprintf("Error: %v", err),
			[]string{"Check redis.url / REDIS_URL, or remove it to run without the mirror"},
		)
	}
	return a.run(ctx)
}
