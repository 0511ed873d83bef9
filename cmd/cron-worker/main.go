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
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/goldvault-backend/internal/cron"
	"github.com/angelmondragon/goldvault-backend/internal/gateway"
	"github.com/angelmondragon/goldvault-backend/internal/storagebilling"
	"github.com/angelmondragon/goldvault-backend/pkg/config"
	"github.com/angelmondragon/goldvault-backend/pkg/db"
	"github.com/angelmondragon/goldvault-backend/pkg/logger"
	"github.com/angelmondragon/goldvault-backend/pkg/metrics"
	"github.com/angelmondragon/goldvault-backend/pkg/migrate"
	"github.com/angelmondragon/goldvault-backend/pkg/outbox"
	"github.com/angelmondragon/goldvault-backend/pkg/redis"
	"github.com/angelmondragon/goldvault-backend/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	cronMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
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

	billingJob, err := cron.NewStorageBillingJob(cron.StorageBillingJobParams{
		Logger: logg,
		Runner: billingRunner,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create storage billing job", err)
		os.Exit(1)
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		DB:          dbClient,
		Repository:  outbox.NewRepository(dbClient.DB()),
		Retention:   cfg.Outbox.Retention,
		MaxAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}

	cycleLock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron"), cfg.Billing.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry, err := cron.NewRegistry(billingJob, retentionJob)
	if err != nil {
		logg.Error(context.Background(), "failed to register cron jobs", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     cycleLock,
		Metrics:  cronMetrics,
		Schedule: cfg.Billing.Schedule,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})

	metricsServer := startMetricsServer(ctx, logg, cfg.App.Port)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func startMetricsServer(ctx context.Context, logg *logger.Logger, port string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "metrics server stopped", err)
		}
	}()
	return server
}
