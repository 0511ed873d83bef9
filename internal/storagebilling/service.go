// Package storagebilling runs the monthly vault storage billing batch.
package storagebilling

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/goldvault-backend/internal/gateway"
	"github.com/angelmondragon/goldvault-backend/pkg/config"
	"github.com/angelmondragon/goldvault-backend/pkg/enums"
	"github.com/angelmondragon/goldvault-backend/pkg/logger"
	"github.com/angelmondragon/goldvault-backend/pkg/metrics"
)

// ErrHoldingsFetch marks a run aborted because active holdings could not be read.
var ErrHoldingsFetch = errors.New("fetch active holdings")

// Service bills customers for stored holdings and revalues holdings afterwards.
type Service interface {
	Run(ctx context.Context) (Summary, error)
	Revalue(ctx context.Context) (RevaluationResult, error)
}

// ServiceParams wires the billing service.
type ServiceParams struct {
	Holdings  holdingStore
	Customers customerRefStore
	Attempts  attemptStore
	Prices    priceSource
	Gateway   gateway.Gateway
	Recorder  Recorder
	Metrics   *metrics.BillingMetrics
	Logger    *logger.Logger
	Config    config.BillingConfig
	Now       func() time.Time
}

type service struct {
	holdings  holdingStore
	customers customerRefStore
	attempts  attemptStore
	prices    priceSource
	gateway   gateway.Gateway
	recorder  Recorder
	metrics   *metrics.BillingMetrics
	logg      *logger.Logger
	cfg       config.BillingConfig
	now       func() time.Time
}

// NewService validates dependencies and returns a billing service.
func NewService(params ServiceParams) (Service, error) {
	if params.Holdings == nil {
		return nil, errors.New("holding store required")
	}
	if params.Customers == nil {
		return nil, errors.New("customer store required")
	}
	if params.Attempts == nil {
		return nil, errors.New("attempt store required")
	}
	if params.Prices == nil {
		return nil, errors.New("price source required")
	}
	if params.Gateway == nil {
		return nil, errors.New("payment gateway required")
	}
	if params.Recorder == nil {
		return nil, errors.New("recorder required")
	}
	if params.Config.Currency == "" {
		return nil, errors.New("billing currency required")
	}
	if params.Config.GracePeriodDays < 0 {
		return nil, errors.New("grace period days must be >= 0")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	cfg := params.Config
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &service{
		holdings:  params.Holdings,
		customers: params.Customers,
		attempts:  params.Attempts,
		prices:    params.Prices,
		gateway:   params.Gateway,
		recorder:  params.Recorder,
		metrics:   params.Metrics,
		logg:      logg,
		cfg:       cfg,
		now:       now,
	}, nil
}

// Run bills every customer with active holdings for the month containing now.
// Only a failed holdings read is returned as an error; customer failures are
// reported in the summary.
func (s *service) Run(ctx context.Context) (Summary, error) {
	started := time.Now()
	runAt := s.now().UTC()
	runID := uuid.NewString()
	period := PeriodFor(runAt)

	ctx = s.logg.WithBillingRun(ctx, runID, period.Start, period.End)
	s.logg.Info(ctx, "storage billing run starting")

	rows, err := s.holdings.ListActiveForBilling(ctx)
	if err != nil {
		s.metrics.ObserveRun(time.Since(started), true)
		err = fmt.Errorf("%w: %w", ErrHoldingsFetch, err)
		s.logg.Error(ctx, "storage billing run aborted", err)
		return Summary{}, err
	}

	batches := GroupByCustomer(rows)
	results := make([]customerResult, len(batches))

	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for i, batch := range batches {
		g.Go(func() error {
			results[i] = s.processCustomer(ctx, runID, runAt, period, batch)
			return nil
		})
	}
	_ = g.Wait()

	summary := NewSummary()
	for i, batch := range batches {
		summary.add(batch, results[i])
	}
	s.metrics.AddCustomers(metrics.OutcomeSuccess, summary.Success)
	s.metrics.AddCustomers(metrics.OutcomeFailed, summary.Failed)
	s.metrics.AddCustomers(metrics.OutcomeSkipped, summary.Skipped)

	if _, err := s.Revalue(ctx); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "holding revaluation incomplete")
	}

	s.metrics.ObserveRun(time.Since(started), false)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"success":     summary.Success,
		"failed":      summary.Failed,
		"skipped":     summary.Skipped,
		"customers":   len(batches),
		"duration_ms": time.Since(started).Milliseconds(),
	}), "storage billing run complete")
	return summary, nil
}

// processCustomer isolates one customer's workflow; nothing it does escapes
// as a panic or an error.
func (s *service) processCustomer(ctx context.Context, runID string, runAt time.Time, period Period, batch CustomerBatch) (res customerResult) {
	ctx = s.logg.WithCustomerID(ctx, batch.CustomerID().String())
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			s.logg.Error(s.logg.WithField(ctx, "panic_stack", string(debug.Stack())), "customer billing panicked", err)
			res = customerResult{outcome: outcomeFailed, err: err}
		}
	}()

	if !batch.TotalFee().IsPositive() {
		return customerResult{outcome: outcomeSkipped}
	}

	attempt, err := s.attempts.Begin(ctx, batch.CustomerID(), period.Start)
	if err != nil {
		err = fmt.Errorf("begin billing attempt: %w", err)
		s.logg.Error(ctx, "customer billing failed", err)
		return customerResult{outcome: outcomeFailed, err: err}
	}
	if attempt.Stage.Reached(enums.BillingAttemptRecorded) {
		s.logg.Info(ctx, "customer already billed for period")
		return customerResult{outcome: outcomeSkipped}
	}

	w := &workflow{svc: s, runID: runID, runAt: runAt, period: period, batch: batch, attempt: attempt}
	if err := w.run(ctx); err != nil {
		if recErr := s.attempts.RecordError(ctx, attempt.ID, err.Error()); recErr != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", recErr.Error()), "failed to record billing attempt error")
		}
		s.logg.Error(ctx, "customer billing failed", err)
		return customerResult{outcome: outcomeFailed, err: err}
	}
	return customerResult{outcome: outcomeSuccess}
}
