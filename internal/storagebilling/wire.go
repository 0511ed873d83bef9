package storagebilling

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/goldvault-backend/internal/customers"
	"github.com/angelmondragon/goldvault-backend/internal/gateway"
	"github.com/angelmondragon/goldvault-backend/internal/holdings"
	"github.com/angelmondragon/goldvault-backend/internal/ledger"
	"github.com/angelmondragon/goldvault-backend/internal/prices"
	"github.com/angelmondragon/goldvault-backend/pkg/config"
	"github.com/angelmondragon/goldvault-backend/pkg/db"
	"github.com/angelmondragon/goldvault-backend/pkg/logger"
	"github.com/angelmondragon/goldvault-backend/pkg/metrics"
	"github.com/angelmondragon/goldvault-backend/pkg/outbox"
)

// Dependencies are the process-level clients a billing service is assembled from.
type Dependencies struct {
	Conn    *gorm.DB
	Tx      db.TxRunner
	Gateway gateway.Gateway
	Metrics *metrics.BillingMetrics
	Logger  *logger.Logger
	Config  config.BillingConfig
}

// Assemble builds the billing service on postgres-backed repositories and a
// transactional recorder that also queues outbox events.
func Assemble(deps Dependencies) (Service, error) {
	if deps.Conn == nil {
		return nil, errors.New("db connection required")
	}
	if deps.Tx == nil {
		return nil, errors.New("db runner required")
	}

	customerRepo := customers.NewRepository(deps.Conn)
	attemptRepo := ledger.NewAttemptRepository(deps.Conn)

	recorder, err := NewTxRecorder(RecorderParams{
		DB:        deps.Tx,
		Ledger:    ledger.NewRepository(deps.Conn),
		Customers: customerRepo,
		Attempts:  attemptRepo,
		Outbox:    outbox.NewService(outbox.NewRepository(deps.Conn), deps.Logger),
	})
	if err != nil {
		return nil, fmt.Errorf("build recorder: %w", err)
	}

	return NewService(ServiceParams{
		Holdings:  holdings.NewRepository(deps.Conn),
		Customers: customerRepo,
		Attempts:  attemptRepo,
		Prices:    prices.NewRepository(deps.Conn),
		Gateway:   deps.Gateway,
		Recorder:  recorder,
		Metrics:   deps.Metrics,
		Logger:    deps.Logger,
		Config:    deps.Config,
	})
}
