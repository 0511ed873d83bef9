package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/goldvault-backend/internal/cron"
	"github.com/angelmondragon/goldvault-backend/internal/customers"
	"github.com/angelmondragon/goldvault-backend/internal/gateway"
	"github.com/angelmondragon/goldvault-backend/internal/holdings"
	"github.com/angelmondragon/goldvault-backend/internal/ledger"
	"github.com/angelmondragon/goldvault-backend/internal/prices"
	"github.com/angelmondragon/goldvault-backend/internal/storagebilling"
	"github.com/angelmondragon/goldvault-backend/pkg/config"
	"github.com/angelmondragon/goldvault-backend/pkg/db"
	"github.com/angelmondragon/goldvault-backend/pkg/logger"
	"github.com/angelmondragon/goldvault-backend/pkg/metrics"
	"github.com/angelmondragon/goldvault-backend/pkg/outbox"
	"github.com/angelmondragon/goldvault-backend/pkg/redis"
	"github.com/angelmondragon/goldvault-backend/pkg/stripe"
)

func main() {
	cmd := newRootCommand(bootstrap)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "vaultctl: %v\n", err)
		os.Exit(1)
	}
}

// bootstrap connects to postgres, redis and stripe and assembles the services
// the operator commands drive.
func bootstrap(ctx context.Context) (*runtime, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Service.Kind = "vaultctl"

	logg := logger.New(logger.Options{
		ServiceName: "vaultctl",
		Env:         cfg.App.Env,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap database: %w", err)
	}
	closers := []func() error{dbClient.Close}
	closeAll := func() error {
		var firstErr error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}
	fail := func(err error) (*runtime, error) {
		_ = closeAll()
		return nil, err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fail(fmt.Errorf("bootstrap redis: %w", err))
	}
	closers = append(closers, redisClient.Close)

	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		return fail(fmt.Errorf("bootstrap stripe: %w", err))
	}
	stripeGateway, err := gateway.NewStripeGateway(stripeClient, gateway.StripeOptions{CallTimeout: cfg.Billing.GatewayCallTimeout})
	if err != nil {
		return fail(err)
	}

	billingService, err := storagebilling.Assemble(storagebilling.Dependencies{
		Conn:    dbClient.DB(),
		Tx:      dbClient,
		Gateway: stripeGateway,
		Metrics: metrics.NewBillingMetrics(prometheus.NewRegistry()),
		Logger:  logg,
		Config:  cfg.Billing,
	})
	if err != nil {
		return fail(err)
	}
	billingLock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("storage_billing"), cfg.Billing.LockTTL)
	if err != nil {
		return fail(err)
	}
	runner, err := storagebilling.NewExclusiveRunner(billingService, billingLock, logg)
	if err != nil {
		return fail(err)
	}

	customerService, err := customers.NewService(customers.ServiceParams{
		DB:     dbClient,
		Repo:   customers.NewRepository(dbClient.DB()),
		Outbox: outbox.NewService(outbox.NewRepository(dbClient.DB()), logg),
		Logger: logg,
	})
	if err != nil {
		return fail(err)
	}

	conn := dbClient.DB()
	return &runtime{
		billing:   runner,
		revaluer:  billingService,
		customers: customerService,
		holdings:  holdings.NewRepository(conn),
		ledger:    ledger.NewRepository(conn),
		attempts:  ledger.NewAttemptRepository(conn),
		prices:    prices.NewRepository(conn),
		close:     closeAll,
	}, nil
}
