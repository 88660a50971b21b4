package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/fluencycoach/internal/analysis"
	"github.com/nikhilbhutani/fluencycoach/internal/app"
	"github.com/nikhilbhutani/fluencycoach/internal/assessment"
	"github.com/nikhilbhutani/fluencycoach/internal/config"
	"github.com/nikhilbhutani/fluencycoach/internal/database"
	"github.com/nikhilbhutani/fluencycoach/internal/observe"
	"github.com/nikhilbhutani/fluencycoach/internal/queue"
	"github.com/nikhilbhutani/fluencycoach/internal/queue/workers"
	"github.com/nikhilbhutani/fluencycoach/internal/storage"
)

const concurrency = 4

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := app.NewLogger(cfg.Observability.LogLevel)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}
	if cfg.Database.URL == "" || cfg.Redis.Addr == "" || cfg.Storage.SupabaseURL == "" {
		slog.Error("worker requires DATABASE_URL, REDIS_ADDR and SUPABASE_URL")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Observability.MetricsEnabled {
		otelProvider, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "fluencycoach-worker"})
		if err != nil {
			slog.Error("failed to init telemetry", "error", err)
			os.Exit(1)
		}
		defer otelProvider.Shutdown(context.Background())
	}

	cfg.Database.ApplicationName += "-worker"
	db, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		slog.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	store := assessment.NewStore(db)

	svc, err := app.NewServices(cfg, logger, analysis.WithRecorder(store), analysis.WithMetrics(observe.DefaultMetrics()))
	if err != nil {
		slog.Error("failed to build services", "error", err)
		os.Exit(1)
	}

	srv := asynq.NewServer(
		queue.RedisOpt(cfg.Redis),
		asynq.Config{
			Concurrency: concurrency,
			Logger:      newAsynqLogger(logger),
		},
	)

	registry := queue.NewHandlersRegistry()

	objects := storage.NewSupabaseStorage(cfg.Storage.SupabaseURL, cfg.Storage.SupabaseKey)
	analysisWorker := workers.NewAnalysisWorker(svc.Analysis, store, objects, cfg.Storage.Bucket, logger)
	registry.Register(queue.TypeAnalysisRun, asynq.HandlerFunc(analysisWorker.ProcessTask))

	if err := srv.Start(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
	slog.Info("starting worker", "concurrency", concurrency)

	<-ctx.Done()
	slog.Info("shutting down worker...")
	srv.Shutdown()
}
