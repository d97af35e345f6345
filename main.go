// Command playmark is the main entrypoint for the score-to-broadcast
// correlation service. It:
//   - Loads configuration and initializes structured logging.
//   - Connects to Postgres and runs idempotent migrations.
//   - Polls the score-post bot's comment feed, resolves each claimed play to a
//     concrete recent score, and locates it inside the player's archived
//     Twitch broadcasts.
//   - Posts a deep-linked reply, or defers the play in the tracking queue
//     until the broadcast is archived.
//   - Exposes a minimal HTTP server with /healthz, /readyz, /status, /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/onnwee/playmark/beatmap"
	"github.com/onnwee/playmark/config"
	"github.com/onnwee/playmark/db"
	"github.com/onnwee/playmark/osuapi"
	"github.com/onnwee/playmark/pipeline"
	"github.com/onnwee/playmark/redditapi"
	"github.com/onnwee/playmark/server"
	"github.com/onnwee/playmark/telemetry"
	"github.com/onnwee/playmark/twitchapi"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	ring := setupLogging()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.ValidatePipelineReady(); err != nil {
		slog.Error("missing upstream credentials", slog.Any("err", err))
		os.Exit(1)
	}

	telemetry.Init()
	shutdown, err := telemetry.InitTracing("playmark", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	database, err := db.Connect(cfg.DBDsn)
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			slog.Error("failed to close database", slog.Any("err", err))
		}
	}()
	if err := db.Migrate(context.Background(), database); err != nil {
		slog.Error("failed to migrate db", slog.Any("err", err))
		os.Exit(1)
	}

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reddit := &redditapi.Client{
		TokenSource: redditapi.NewTokenSource(database, redditapi.Credentials{
			AppID:     cfg.RedditAppID,
			AppSecret: cfg.RedditAppSecret,
			Username:  cfg.RedditUsername,
			Password:  cfg.RedditPassword,
			UserAgent: cfg.RedditUserAgent,
		}),
		UserAgent: cfg.RedditUserAgent,
	}
	osu := &osuapi.Client{
		TokenSource: osuapi.NewTokenSource(database, cfg.OsuClientID, cfg.OsuClientSecret, ""),
	}
	helix := &twitchapi.HelixClient{
		TokenSource: twitchapi.NewTokenSource(database, cfg.TwitchClientID, cfg.TwitchClientSecret, ""),
		ClientID:    cfg.TwitchClientID,
	}
	lengths := beatmap.NewService(database, cfg.BeatmapMirrorURL, cfg.DataDir)
	pipe := pipeline.New(database, cfg, reddit, osu, helix, lengths)

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	go func() {
		if err := server.Start(ctx, database, ring, addr); err != nil {
			slog.Error("http server exited", slog.Any("err", err))
		}
	}()

	slog.Info("pipeline starting",
		slog.Duration("poll_interval", cfg.PollInterval),
		slog.Duration("queue_interval", cfg.QueueInterval))

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()
	pipe.RunCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.Info("shutting down")
			return
		case <-ticker.C:
			pipe.RunCycle(ctx)
		}
	}
}

// setupLogging configures the default slog logger from LOG_LEVEL and
// LOG_FORMAT and returns the ring buffer that captures recent lines for the
// /status endpoint. Defaults: level=info, format=text.
func setupLogging() *telemetry.LogRing {
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	var handler slog.Handler
	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	ring := telemetry.NewLogRing(0)
	slog.SetDefault(slog.New(telemetry.NewRingHandler(handler, ring)))
	slog.Info("logger initialized", slog.String("level", lvl.String()))
	return ring
}
