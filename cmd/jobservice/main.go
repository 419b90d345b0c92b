// Package main is the entry point for the job service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tileexport/internal/config"
	"tileexport/internal/controller"
	"tileexport/internal/controller/handlers"
	"tileexport/internal/logger"
	"tileexport/internal/observability"
	"tileexport/internal/store"
	"tileexport/internal/store/postgres"
	"tileexport/internal/worker"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

func main() {
	log := logger.New()

	// Parse flags
	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting")
	configPath := flag.String("config", "", "Path to config file (default: jobservice.yaml in current directory)")
	flag.Parse()

	if wd, err := os.Getwd(); err == nil {
		if envPath := config.LoadDotEnv(wd); envPath != "" {
			log.Info("loaded environment file", "path", envPath)
		}
	}

	// Load Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to Postgres (the "Store")
	db, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run migrations if requested
	if *migrateFlag {
		log.Info("running database migrations")
		version, err := postgres.Migrate(db.DB())
		if err != nil {
			log.Error("migration failed", "error", err)
			os.Exit(1)
		}
		log.Info("migrations completed successfully", "version", version)
	}

	// Tracing
	shutdownTracer, err := observability.InitTracer(ctx, "jobservice", cfg.OTELEndpoint)
	if err != nil {
		log.Error("failed to init tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Warn("failed to shutdown tracer", "error", err)
		}
	}()

	// Metrics
	metricsHandler, shutdownMetrics, err := observability.InitMetrics("jobservice")
	if err != nil {
		log.Error("failed to init metrics", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			log.Warn("failed to shutdown metrics", "error", err)
		}
	}()

	// Use an Observable Gauge (Async) that queries the DB only when scraped.
	meter := otel.Meter("jobservice")
	_, err = meter.Int64ObservableGauge("jobservice.tasks",
		metric.WithDescription("Current number of tasks per status"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			counts, err := db.CountByStatus(ctx)
			if err != nil {
				log.Warn("failed to count tasks", "error", err)
				return nil // Don't crash metrics scrape on DB error
			}
			for _, st := range []store.TaskStatus{
				store.TaskStatusPending, store.TaskStatusInProgress,
				store.TaskStatusCompleted, store.TaskStatusFailed,
			} {
				obs.Observe(counts[st], metric.WithAttributes(attribute.String("status", string(st))))
			}
			return nil
		}),
	)
	if err != nil {
		log.Warn("failed to register task gauge", "error", err)
	}

	// Background progress
	advancer := worker.New(db, worker.Config{
		Interval: cfg.AdvanceInterval,
		Step:     cfg.AdvanceStep,
		Batch:    cfg.AdvanceBatch,
	}, log)
	go advancer.Run(ctx)

	// Start Server
	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	srv := controller.New(addr, db, controller.Options{
		Limits: handlers.Limits{
			BBoxMinArea: cfg.BBoxMinArea,
			BBoxMaxArea: cfg.BBoxMaxArea,
		},
		APITokens:      cfg.APITokens,
		RateLimit:      cfg.RateLimit,
		RateLimitBurst: cfg.RateLimitBurst,
		Metrics:        metricsHandler,
		Logger:         log,
	})

	serverErr := make(chan error, 1)
	go func() {
		log.Info("job service starting", "addr", addr, "auth", len(cfg.APITokens) > 0)
		serverErr <- srv.Run(ctx)
	}()

	// Graceful Shutdown
	select {
	case <-ctx.Done():
		log.Info("shutting down job service")
	case err := <-serverErr:
		if err != nil {
			log.Error("server stopped", "error", err)
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}
	select {
	case <-advancer.Done():
	case <-shutdownCtx.Done():
	}
	log.Info("server exited properly")
}
