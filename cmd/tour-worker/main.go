package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"bilancio/internal/amqp"
	"bilancio/internal/cli"
	"bilancio/internal/config"
	applog "bilancio/internal/log"
	"bilancio/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		slog.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(applog.ComponentWorker, cfg.LogLevel)

	if !cfg.AMQPEnabled() {
		logger.Error("tour-worker needs AMQP_URL")
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("tour-worker stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *applog.Logger) error {
	ctx, stop := cli.SignalContext(logger)
	defer stop()

	repo, err := cli.InitSQLite(ctx, logger.WithComponent(applog.ComponentStorage), cfg.SQLiteDBPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return fmt.Errorf("connect amqp: %w", err)
	}
	defer client.Close()

	w := worker.NewEventWorker(repo, logger.Logger)
	logger.Info("Starting tour-worker", "queue", cfg.AMQPQueue, "stats_interval", cfg.StatsInterval)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return client.Run(gctx, w.HandleLifecycle) })
	g.Go(func() error { return w.ReportStats(gctx, cfg.StatsInterval) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	s, err := w.Stats(context.Background())
	if err != nil {
		logger.Warn("Failed to read final stats", "error", err)
	}
	logger.Info("tour-worker stopped", "stored", s.Stored, "duplicates", s.Duplicates)
	return nil
}
