package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/stellar-explain/service/cache"
	"github.com/brojonat/stellar-explain/service/config"
	"github.com/brojonat/stellar-explain/service/db"
	"github.com/brojonat/stellar-explain/service/horizon"
	"github.com/brojonat/stellar-explain/service/labels"
	"github.com/brojonat/stellar-explain/service/metrics"
	"github.com/brojonat/stellar-explain/service/server"
	"github.com/brojonat/stellar-explain/service/temporal"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"network", cfg.Network,
		"horizon_url", cfg.HorizonURL,
		"log_level", cfg.LogLevel,
	)

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsCollector := metrics.NewMetrics(nil) // nil uses default registry

	horizonClient := horizon.NewClient(
		horizon.NewHTTPAPI(cfg.HorizonURL, cfg.HorizonTimeout),
		cfg.Network,
		cfg.HorizonMaxRetries,
		metricsCollector,
		logger,
	)
	explanationCache := cache.New(cfg.CacheSize, cfg.CacheTTL, metricsCollector)

	opts := server.Options{
		Config:  cfg,
		Horizon: horizonClient,
		Cache:   explanationCache,
		Metrics: metricsCollector,
		Logger:  logger,
	}

	// The database is optional: without it only built-in labels are used and
	// watches are disabled.
	if cfg.DatabaseURL != "" {
		dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer dbPool.Close()

		if err := dbPool.Ping(ctx); err != nil {
			logger.Error("failed to ping database", "error", err)
			os.Exit(1)
		}
		logger.Info("connected to database")

		store := db.NewStore(dbPool, metricsCollector)
		if err := store.Migrate(ctx); err != nil {
			logger.Error("failed to apply schema", "error", err)
			os.Exit(1)
		}

		registry := labels.NewRegistry(cfg.Network, store, logger)
		if err := registry.Reload(ctx); err != nil {
			logger.Warn("failed to load operator labels, using built-in labels", "error", err)
		}
		// cached explanations embed labels
		registry.OnChange(explanationCache.Purge)
		go registry.Run(ctx, cfg.LabelReloadInterval)

		opts.Labels = registry
		opts.LabelDB = store
		opts.Watches = store

		temporalClient, err := temporal.NewClient(cfg.TemporalHost, cfg.TemporalNamespace, cfg.TemporalTaskQueue, logger)
		if err != nil {
			logger.Warn("failed to connect to temporal, watch endpoints disabled", "error", err)
		} else {
			defer temporalClient.Close()
			opts.Scheduler = temporalClient
			logger.Info("connected to temporal",
				"host", cfg.TemporalHost,
				"namespace", cfg.TemporalNamespace,
			)
		}
	} else {
		opts.Labels = labels.NewRegistry(cfg.Network, nil, logger)
	}

	if cfg.NATSURL != "" {
		stream, err := server.NewSSEStream(cfg.NATSURL, metricsCollector, logger)
		if err != nil {
			logger.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		opts.Stream = stream
		logger.Info("connected to NATS", "url", cfg.NATSURL)
	}

	httpServer := server.New(opts)

	logger.Info("server initialized",
		"labels_enabled", opts.LabelDB != nil,
		"watches_enabled", opts.Scheduler != nil,
		"streaming_enabled", opts.Stream != nil,
	)

	// Start HTTP server in background
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start(ctx)
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
		cancel()

		// Graceful shutdown with timeout
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
