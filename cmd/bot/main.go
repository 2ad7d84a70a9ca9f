package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/caparkapa-educatedear/hepsiburada-bot/internal/config"
	"github.com/caparkapa-educatedear/hepsiburada-bot/internal/dispatch"
	"github.com/caparkapa-educatedear/hepsiburada-bot/internal/logging"
	"github.com/caparkapa-educatedear/hepsiburada-bot/internal/pipeline"
	"github.com/caparkapa-educatedear/hepsiburada-bot/internal/scheduler"
	"github.com/caparkapa-educatedear/hepsiburada-bot/internal/scraper"
	"github.com/caparkapa-educatedear/hepsiburada-bot/internal/server"
	"github.com/caparkapa-educatedear/hepsiburada-bot/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			slog.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		slog.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	log := newLogger(cfg.LogLevel, store)

	browser := scraper.NewBrowser(cfg.TargetURL, cfg.ChromePath)
	scr, err := scraper.New(browser, cfg.TargetURL, log)
	if err != nil {
		log.Error("create scraper", "error", err)
		os.Exit(1)
	}

	runner := pipeline.NewRunner(
		scr,
		pipeline.NewIngestor(store, log),
		dispatch.New(store, log),
		log,
	)

	srv := server.New(store, runner, cfg, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.ScrapeInterval > 0 {
		sched := scheduler.New(runner, cfg.ScrapeInterval, log)
		go sched.Run(ctx)
		log.Info("internal scheduler enabled", "interval", cfg.ScrapeInterval)
	}

	go func() {
		<-ctx.Done()
		_ = srv.Shutdown()
	}()

	log.Info("starting server", "addr", cfg.ListenAddr)
	if err := srv.Listen(cfg.ListenAddr); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}

// newLogger builds the application logger. Error records are additionally
// persisted to the logs table for later inspection.
func newLogger(level string, store *storage.SQLite) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	text := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(logging.NewStoreHandler(text, store))
}
