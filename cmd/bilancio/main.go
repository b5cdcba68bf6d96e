package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/analytics"
	"bilancio/internal/cache"
	"bilancio/internal/catalog"
	"bilancio/internal/cli"
	"bilancio/internal/config"
	apphttp "bilancio/internal/http"
	applog "bilancio/internal/log"
	"bilancio/internal/services"
	"bilancio/internal/storage"
)

const (
	cacheCleanupInterval = 5 * time.Minute
	shutdownTimeout      = 30 * time.Second
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		slog.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(applog.ComponentApp, cfg.LogLevel)

	if err := run(cfg, logger); err != nil {
		logger.Error("bilancio stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *applog.Logger) error {
	ctx, stop := cli.SignalContext(logger)
	defer stop()

	cat, err := catalog.Default()
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	var (
		kv    storage.KV
		ready func(context.Context) error
	)
	switch cfg.StorageBackend {
	case config.BackendSQLite:
		repo, err := cli.InitSQLite(ctx, logger.WithComponent(applog.ComponentStorage), cfg.SQLiteDBPath)
		if err != nil {
			return err
		}
		defer repo.Close()
		kv, ready = repo, repo.Ping
	default:
		kv = storage.NewMemoryKV()
		logger.Warn("Help state kept in memory; it is lost on restart")
	}

	// A nil Publisher keeps analytics log-only.
	var pub analytics.Publisher
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			return fmt.Errorf("connect amqp: %w", err)
		}
		defer client.Close()
		pub = client
		logger.Info("Publishing tour analytics", "exchange", cfg.AMQPExchange)
	}

	guide := services.NewGuideService(services.GuideConfig{
		Catalog:    cat,
		KV:         kv,
		Policy:     storage.UseDefault,
		Analytics:  cli.AnalyticsFactory(logger, pub),
		Logger:     logger.WithComponent(applog.ComponentTour).Logger,
		CacheSize:  cfg.SessionCacheSize,
		SessionTTL: cfg.SessionTTL,
	})

	caches := cache.NewManager(logger.WithComponent(applog.ComponentCache).Logger)
	caches.Register(guide.Sessions())
	caches.StartCleanup(cacheCleanupInterval)
	defer caches.Stop()

	projection, err := cli.Projection(cfg)
	if err != nil {
		return err
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Guide:              guide,
		Catalog:            cat,
		Projection:         projection,
		Ready:              ready,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})
	if err != nil {
		return err
	}
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		logger.Info("Starting bilancio server", "port", cfg.Port, "backend", cfg.StorageBackend, "amqp", cfg.AMQPEnabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("listen on %s: %w", cfg.Port, err)
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.LogError(shutdownCtx, "Server shutdown error", err, applog.OpShutdown, applog.NewFields())
	}

	m := srv.Metrics()
	logger.Info("Server stopped gracefully",
		"requests", m.TotalRequests,
		"failed_requests", m.FailedRequests,
		"sessions", guide.Sessions().Size())
	return nil
}
