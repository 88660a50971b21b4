package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/fluencycoach/internal/analysis"
	"github.com/nikhilbhutani/fluencycoach/internal/api"
	"github.com/nikhilbhutani/fluencycoach/internal/api/handlers"
	"github.com/nikhilbhutani/fluencycoach/internal/app"
	"github.com/nikhilbhutani/fluencycoach/internal/assessment"
	"github.com/nikhilbhutani/fluencycoach/internal/cache"
	"github.com/nikhilbhutani/fluencycoach/internal/config"
	"github.com/nikhilbhutani/fluencycoach/internal/database"
	"github.com/nikhilbhutani/fluencycoach/internal/multimodal/tts"
	"github.com/nikhilbhutani/fluencycoach/internal/observe"
	"github.com/nikhilbhutani/fluencycoach/internal/queue"
	"github.com/nikhilbhutani/fluencycoach/internal/storage"
)

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := api.Deps{Checks: map[string]handlers.Pinger{}}
	var extra []analysis.Option

	if cfg.Observability.MetricsEnabled {
		otelProvider, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: "1.0.0"})
		if err != nil {
			slog.Error("failed to init telemetry", "error", err)
			os.Exit(1)
		}
		defer otelProvider.Shutdown(context.Background())
		deps.Metrics = observe.DefaultMetrics()
		deps.MetricsHandler = otelProvider.Handler()
		extra = append(extra, analysis.WithMetrics(deps.Metrics))
	}

	// Database (optional: without it there is no assessment history)
	var store *assessment.Store
	if cfg.Database.URL != "" {
		db, err := database.NewPool(ctx, cfg.Database)
		if err != nil {
			slog.Warn("database unavailable, running without assessment history", "error", err)
		} else {
			defer db.Close()
			if err := database.RunMigrations(ctx, db, database.Migrations()); err != nil {
				slog.Error("migrations failed", "error", err)
				os.Exit(1)
			}
			store = assessment.NewStore(db)
			deps.Assessments = store
			deps.Checks["database"] = db
			extra = append(extra, analysis.WithRecorder(store))
		}
	}

	// Redis (optional: report cache and background jobs)
	var queueClient *queue.Client
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		c := cache.NewCache(rdb)
		if err := c.Ping(ctx); err != nil {
			slog.Warn("redis unavailable, running without cache", "error", err)
		} else {
			deps.Checks["redis"] = c
			queueClient = queue.NewClient(cfg.Redis)
			defer queueClient.Close()

			if reports, err := newReportCache(c, cfg); err != nil {
				slog.Warn("report cache disabled", "error", err)
			} else {
				extra = append(extra, analysis.WithCache(reports))
			}
		}
	}

	svc, err := app.NewServices(cfg, logger, extra...)
	if err != nil {
		slog.Error("failed to build services", "error", err)
		os.Exit(1)
	}
	deps.Analyzer = svc.Analysis
	deps.Improver = svc.Improver
	if p := app.NewTTS(cfg.TTS); p != nil {
		deps.TTS = tts.Instrument(p, observe.DefaultMetrics())
	}

	if store != nil && queueClient != nil && cfg.Storage.SupabaseURL != "" {
		deps.Async = &handlers.AsyncDeps{
			Store:   store,
			Objects: storage.NewSupabaseStorage(cfg.Storage.SupabaseURL, cfg.Storage.SupabaseKey),
			Bucket:  cfg.Storage.Bucket,
			Queue:   queueClient,
		}
	}

	router := api.NewRouter(cfg, deps)
	handler := router.Setup(ctx)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting API server",
			"addr", cfg.Addr(),
			"stt", cfg.STT.Backend,
			"history", store != nil,
			"async", deps.Async != nil,
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server stopped")
}

func newReportCache(c *cache.Cache, cfg *config.Config) (*cache.ReportCache, error) {
	policy, err := app.LoadPolicy(cfg.Analysis.PolicyPath)
	if err != nil {
		return nil, err
	}
	return cache.NewReportCache(c, cfg.Analysis.CacheTTL, policy)
}
