package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/trustmaster/telerss/internal/config"
	"github.com/trustmaster/telerss/internal/feed"
	"github.com/trustmaster/telerss/internal/scheduler"
	"github.com/trustmaster/telerss/internal/store"
	"github.com/trustmaster/telerss/internal/telegram"
	"github.com/trustmaster/telerss/internal/updater"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	start := time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := godotenv.Load(); err != nil {
		log.DebugContext(ctx, "No .env file is loaded",
			"error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.ErrorContext(ctx, "Failed to load config",
			"error", err)

		return
	}

	st, err := store.New(ctx, cfg.DBPath, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize store",
			"error", err,
			"dbPath", cfg.DBPath)

		return
	}
	defer func() {
		if err = st.Close(); err != nil {
			log.ErrorContext(ctx, "Failed to close store",
				"error", err,
				"dbPath", cfg.DBPath)
		}
	}()
	log.InfoContext(ctx, "Store is initialized",
		"dbPath", cfg.DBPath)

	sender, err := telegram.NewSender(cfg.Token, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize Telegram sender",
			"error", err)

		return
	}

	fetcher := updater.NewFetcher(feed.NewParser(), cfg.FeedTimeout, log)
	upd := updater.NewUpdater(fetcher, cfg.PostsOnNewSub, log)
	coord := updater.NewCoordinator(upd, st, sender, log)

	sched := scheduler.New(ctx, coord, cfg.FetchSpec, log)
	if err = sched.Start(); err != nil {
		log.ErrorContext(ctx, "Failed to start scheduler",
			"error", err,
			"spec", cfg.FetchSpec)

		return
	}
	defer sched.Stop()
	log.InfoContext(ctx, "Scheduler is started",
		"spec", cfg.FetchSpec,
		"postsOnNewSub", cfg.PostsOnNewSub)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	sig := <-c
	cancel()

	log.InfoContext(ctx, "Exiting...",
		"signal", sig.String(),
		"uptimeSeconds", time.Since(start).Seconds())
}
