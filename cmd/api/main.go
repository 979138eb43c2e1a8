package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/vendaslabs/orders-backend/api/routes"
	"github.com/vendaslabs/orders-backend/internal/catalog"
	"github.com/vendaslabs/orders-backend/internal/credentials"
	"github.com/vendaslabs/orders-backend/internal/orchestrator"
	internalorders "github.com/vendaslabs/orders-backend/internal/orders"
	"github.com/vendaslabs/orders-backend/internal/relay"
	"github.com/vendaslabs/orders-backend/internal/reports"
	"github.com/vendaslabs/orders-backend/internal/token"
	"github.com/vendaslabs/orders-backend/pkg/config"
	"github.com/vendaslabs/orders-backend/pkg/db"
	"github.com/vendaslabs/orders-backend/pkg/logger"
	"github.com/vendaslabs/orders-backend/pkg/migrate"
	"github.com/vendaslabs/orders-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	credentialsService, err := credentials.NewService(credentials.ServiceParams{
		Repo:           credentials.NewRepository(dbClient.DB()),
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create credentials service", err)
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

	reportsService, err := reports.NewService(reports.ServiceParams{
		Repo: reports.NewRepository(dbClient.DB()),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reports service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:       cfg,
			Logger:       logg,
			DB:           dbClient,
			Redis:        redisClient,
			Credentials:  credentialsService,
			Tokens:       tokenService,
			Catalog:      catalogAdapter,
			Ledger:       ledgerService,
			Orchestrator: orchestratorService,
			Reports:      reportsService,
			Outbox:       relay.NewRepository(dbClient.DB()),
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
