package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"StarWatch/internal/app"
	"StarWatch/internal/config"
	"StarWatch/internal/logging"
)

func main() {
	backfill := flag.Bool("backfill", false, "clone the entire starred history before monitoring")
	flag.Parse()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	if cfg.Feed.Token == "" {
		logger.Warn("GITHUB_TOKEN is not set; the starred feed requires authentication")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, *backfill, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}

	if err := application.Run(ctx); err != nil {
		logger.Error("application stopped", "error", err)
		os.Exit(1)
	}
}
