package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/JasonHongGG/TravelPlanner/internal/adapter/repo"
	"github.com/JasonHongGG/TravelPlanner/internal/domain"
	"github.com/JasonHongGG/TravelPlanner/internal/http/handlers"
	"github.com/JasonHongGG/TravelPlanner/internal/http/httpapi"
	"github.com/JasonHongGG/TravelPlanner/internal/infra"
	"github.com/JasonHongGG/TravelPlanner/internal/jobs"
	"github.com/JasonHongGG/TravelPlanner/internal/ledger"
	"github.com/JasonHongGG/TravelPlanner/internal/pricing"
	"github.com/JasonHongGG/TravelPlanner/internal/providers/genai"
	"github.com/JasonHongGG/TravelPlanner/internal/storage"
)

const drainTimeout = 30 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "tripgen-api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := jobs.NewMetrics(registry)

	snapshots, pool, err := openSnapshots(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open job snapshot storage")
	}
	if pool != nil {
		defer pool.Close()
	}

	store, err := jobs.NewStore(ctx, jobs.StoreOptions{
		ClaimTTL:   cfg.Jobs.ClaimTTL,
		Retention:  cfg.Jobs.Retention,
		StuckAfter: cfg.Jobs.StuckAfter,
		Snapshots:  snapshots,
		Logger:     logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to restore job table")
	}

	table, err := pricing.LoadTable(cfg.PricingFile)
	if err != nil {
		logger.Fatal().Err(err).Str("file", cfg.PricingFile).Msg("failed to load pricing")
	}
	prices := pricing.NewService(table)

	provider := genai.NewClient(genai.Options{
		APIKey:  cfg.GeminiAPIKey,
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.GeminiModel,
		Logger:  logger,
	})
	if provider.Synthetic() {
		logger.Warn().Msg("GEMINI_API_KEY not set; trips are generated synthetically")
	}

	runner := jobs.NewRunner(jobs.RunnerOptions{
		Store:    store,
		Guard:    jobs.NewInFlight(),
		Provider: provider,
		Ledger: ledger.NewClient(ledger.Options{
			BaseURL: cfg.LedgerBaseURL,
			Timeout: cfg.LedgerTimeout,
			Logger:  logger,
		}),
		Pricer:           prices,
		Logger:           logger,
		Metrics:          metrics,
		ExecutionTimeout: cfg.Jobs.ExecutionTimeout,
	})
	service := jobs.NewService(jobs.ServiceOptions{
		Store:   store,
		Runner:  runner,
		Logger:  logger,
		Metrics: metrics,
	})

	sweeper, err := jobs.NewSweeper(store, cfg.Jobs.SweepSchedule, logger, metrics)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid sweep schedule")
	}
	if err := sweeper.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start sweeper")
	}

	app := handlers.NewApp(service, prices, logger)
	router := httpapi.NewRouter(app, httpapi.Options{
		JWTSecret:       cfg.JWTSecret,
		DefaultLocale:   cfg.DefaultLocale,
		AllowedOrigins:  cfg.AllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		Logger:          logger,
		Gatherer:        registry,
	})
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("addr", server.Addr()).Str("model", provider.Model()).Msg("API listening")
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	sweeper.Stop(shutdownCtx)
	if err := service.Wait(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("generation pipelines cancelled before finishing")
	}
	logger.Info().Int("jobs", store.Len()).Msg("server stopped")
}

// openSnapshots picks Postgres when a snapshot database is configured, the
// local file store when a snapshot directory is, and nothing otherwise.
func openSnapshots(ctx context.Context, cfg *infra.Config, logger infra.Logger) (domain.JobSnapshotRepository, *pgxpool.Pool, error) {
	if cfg.SnapshotDatabaseURL != "" {
		pool, err := infra.NewDBPool(ctx, cfg.SnapshotDatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		pg := repo.NewJobSnapshotPG(pool, logger)
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info().Msg("job snapshots stored in postgres")
		return pg, pool, nil
	}
	if cfg.SnapshotDir != "" {
		files, err := storage.NewFileStore(cfg.SnapshotDir)
		if err != nil {
			return nil, nil, err
		}
		logger.Info().Str("dir", files.BasePath()).Msg("job snapshots stored on disk")
		return repo.NewJobSnapshotFile(files, repo.DefaultSnapshotKey), nil, nil
	}
	logger.Warn().Msg("job snapshots disabled; the job table is lost on restart")
	return nil, nil, nil
}
