package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/goldvault-backend/api/routes"
	"github.com/angelmondragon/goldvault-backend/internal/cron"
	"github.com/angelmondragon/goldvault-backend/internal/gateway"
	"github.com/angelmondragon/goldvault-backend/internal/storagebilling"
	"github.com/angelmondragon/goldvault-backend/pkg/config"
	"github.com/angelmondragon/goldvault-backend/pkg/db"
	"github.com/angelmondragon/goldvault-backend/pkg/logger"
	"github.com/angelmondragon/goldvault-backend/pkg/metrics"
	"github.com/angelmondragon/goldvault-backend/pkg/migrate"
	"github.com/angelmondragon/goldvault-backend/pkg/redis"
	"github.com/angelmondragon/goldvault-backend/pkg/stripe"
)

const shutdownTimeout = 30 * time.Second

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

	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Env:         cfg.App.Env,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
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

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}
	stripeGateway, err := gateway.NewStripeGateway(stripeClient, gateway.StripeOptions{CallTimeout: cfg.Billing.GatewayCallTimeout})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment gateway", err)
		os.Exit(1)
	}

	billingService, err := storagebilling.Assemble(storagebilling.Dependencies{
		Conn:    dbClient.DB(),
		Tx:      dbClient,
		Gateway: stripeGateway,
		Metrics: metrics.NewBillingMetrics(prometheus.DefaultRegisterer),
		Logger:  logg,
		Config:  cfg.Billing,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create storage billing service", err)
		os.Exit(1)
	}

	billingLock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("storage_billing"), cfg.Billing.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create billing lock", err)
		os.Exit(1)
	}
	billingRunner, err := storagebilling.NewExclusiveRunner(billingService, billingLock, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create billing runner", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, dbClient, redisClient, billingRunner, prometheus.DefaultGatherer),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "api server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}
}
