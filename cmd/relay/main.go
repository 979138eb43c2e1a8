package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vendaslabs/orders-backend/internal/catalog"
	"github.com/vendaslabs/orders-backend/internal/orchestrator"
	internalorders "github.com/vendaslabs/orders-backend/internal/orders"
	"github.com/vendaslabs/orders-backend/internal/relay"
	"github.com/vendaslabs/orders-backend/internal/token"
	"github.com/vendaslabs/orders-backend/pkg/config"
	"github.com/vendaslabs/orders-backend/pkg/db"
	"github.com/vendaslabs/orders-backend/pkg/logger"
	"github.com/vendaslabs/orders-backend/pkg/metrics"
	"github.com/vendaslabs/orders-backend/pkg/migrate"
	"github.com/vendaslabs/orders-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "relay"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "relay",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	catalogAdapter, err := catalog.NewAdapter(catalog.AdapterParams{
		Store:  redisClient,
		Config: cfg.Catalog,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog adapter", err)
		os.Exit(1)
	}

	ledgerService, err := internalorders.NewService(internalorders.ServiceParams{
		Client: dbClient,
		Repo:   internalorders.NewRepository(dbClient.DB()),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create order ledger", err)
		os.Exit(1)
	}

	orchestratorService, err := orchestrator.NewService(orchestrator.ServiceParams{
		Ledger:         ledgerService,
		Catalog:        catalogAdapter,
		Guard:          redisClient,
		CatalogConfig:  cfg.Catalog,
		ReserveRetries: cfg.Relay.ReserveRetries,
		Logger:         logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orchestrator", err)
		os.Exit(1)
	}

	tokenService, err := token.NewService(token.ServiceParams{
		Repo:      token.NewRepository(dbClient.DB()),
		JWTConfig: cfg.JWT,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create token service", err)
		os.Exit(1)
	}

	worker, err := relay.NewWorker(relay.WorkerParams{
		Repo:    relay.NewRepository(dbClient.DB()),
		Applier: orchestratorService,
		Config:  cfg.Relay,
		Metrics: metrics.NewRelayMetrics(prometheus.DefaultRegisterer),
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create relay worker", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": "relay",
	})
	logg.Info(ctx, "starting outbox relay")

	go purgeExpiredTokens(ctx, tokenService, logg)
	go serveMetrics(ctx, cfg.Relay.MetricsPort, logg)

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox relay stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "outbox relay shutting down gracefully")
}

// serveMetrics exposes the relay counters for scraping. The listener follows
// the worker's lifecycle and drains on shutdown.
func serveMetrics(ctx context.Context, port string, logg *logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: ":" + port, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "error shutting down metrics listener", err)
		}
	}()

	logg.Info(logg.WithField(ctx, "port", port), "serving relay metrics")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "metrics listener stopped unexpectedly", err)
	}
}

// purgeExpiredTokens deletes expired refresh token rows on an hourly cadence
// so the table does not grow without bound.
func purgeExpiredTokens(ctx context.Context, tokens token.Service, logg *logger.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := tokens.PurgeExpired(ctx)
			if err != nil {
				logg.Error(ctx, "failed to purge expired refresh tokens", err)
				continue
			}
			if deleted > 0 {
				logg.Info(logg.WithField(ctx, "deleted", deleted), "purged expired refresh tokens")
			}
		}
	}
}
