// Package main is the entry point for the tour manager API server.
// Its sole responsibility is wiring dependencies together and starting the server.
// No business logic belongs here.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkordes/tour-manager/api"
	"github.com/pkordes/tour-manager/internal/bandsintown"
	"github.com/pkordes/tour-manager/internal/cache"
	"github.com/pkordes/tour-manager/internal/config"
	"github.com/pkordes/tour-manager/internal/database"
	"github.com/pkordes/tour-manager/internal/domain"
	"github.com/pkordes/tour-manager/internal/handler"
	"github.com/pkordes/tour-manager/internal/migrate"
	"github.com/pkordes/tour-manager/internal/observability"
	"github.com/pkordes/tour-manager/internal/repo"
	"github.com/pkordes/tour-manager/internal/resilience"
	"github.com/pkordes/tour-manager/internal/service"
	"github.com/pkordes/tour-manager/internal/web"
	"github.com/pkordes/tour-manager/internal/webhook"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// --- Config -----------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// --- Logger -----------------------------------------------------------
	logger, syncLogger, err := observability.NewLogger(cfg.LogLevel, cfg.IsDevelopment())
	if err != nil {
		return err
	}
	defer func() { _ = syncLogger() }()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Tracing ----------------------------------------------------------
	shutdownTracer, err := observability.InitTracer(ctx, cfg.OTLPEndpoint, "tour-manager")
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Warn("tracer shutdown", "error", err)
		}
	}()

	// --- Database ---------------------------------------------------------
	target, err := database.Resolve(cfg.Database, cfg.Env)
	if err != nil {
		return err
	}
	retry := resilience.Config{MaxRetries: cfg.MaxRetries, InitialBackoff: cfg.InitialBackoff}

	if cfg.MigrateOnStart {
		if err := migrateUp(ctx, target, logger); err != nil {
			return err
		}
	}

	pool, err := database.NewPool(ctx, target, retry, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	// --- Services ---------------------------------------------------------
	metrics := observability.NewMetrics()
	store := repo.NewStore(pool)

	tours := service.NewTourService(store.Tours, store.Events)
	if cfg.CacheTTL > 0 {
		tourCache := cache.New[int64, domain.Tour](cfg.CacheTTL)
		defer tourCache.Close()
		tours = tours.WithCache(tourCache, metrics)
	}

	webhooks := service.NewWebhookService(repo.NewTxRunner(pool), metrics, logger)

	var fetcher service.EventFetcher
	if client := bandsintown.NewFromConfig(cfg.Bandsintown, cfg.HTTPTimeout, retry, logger); client != nil {
		fetcher = client
	} else {
		logger.Warn("BANDSINTOWN_APP_ID not set; sync disabled")
	}
	syncer := service.NewSyncService(store, fetcher, service.SyncOptions{
		Concurrency: cfg.Sync.Concurrency,
		Timeout:     cfg.Sync.Timeout,
		Metrics:     metrics,
	}, logger)

	if cfg.Bandsintown.WebhookSecret == "" {
		logger.Warn("BANDSINTOWN_WEBHOOK_SECRET not set; every Bandsintown callback will be rejected")
	}

	pages, err := web.NewServer(tours, logger)
	if err != nil {
		return err
	}

	// --- Router -----------------------------------------------------------
	srv := handler.NewServer(tours, webhooks, syncer, pool, logger)
	router := handler.NewRouter(srv, handler.RouterOptions{
		Verifier:     webhook.NewVerifier(cfg.Bandsintown.WebhookSecret),
		CORSOrigins:  cfg.CORSOrigins,
		MaxBodyBytes: cfg.MaxBodyBytes,
		Metrics:      metrics,
		OpenAPI:      api.OpenAPI,
		Pages:        pages,
	}, logger)

	// --- HTTP Server ------------------------------------------------------
	// Explicit timeouts prevent slowloris and resource exhaustion attacks.
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	scheduled := make(chan struct{})
	go func() {
		defer close(scheduled)
		syncer.Schedule(ctx, cfg.Sync.Interval)
	}()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", httpServer.Addr, "env", cfg.Env)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	// Give in-flight requests up to 15 seconds to complete.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	// A background sync finishes and records its run before the pool closes.
	// The scheduler has to stop first so it cannot start a run during Wait.
	<-scheduled
	syncer.Wait()
	logger.Info("server stopped")
	return nil
}

// migrateUp applies pending migrations over a short-lived database/sql handle.
func migrateUp(ctx context.Context, target database.Target, log *slog.Logger) error {
	db, err := database.OpenSQL(target)
	if err != nil {
		return err
	}
	defer db.Close()

	runner, err := migrate.New(db, log)
	if err != nil {
		return err
	}
	return runner.Up(ctx)
}
