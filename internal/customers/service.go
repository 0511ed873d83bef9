package customers

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/goldvault-backend/pkg/db"
	"github.com/angelmondragon/goldvault-backend/pkg/db/models"
	"github.com/angelmondragon/goldvault-backend/pkg/enums"
	"github.com/angelmondragon/goldvault-backend/pkg/logger"
	"github.com/angelmondragon/goldvault-backend/pkg/outbox"
	"github.com/angelmondragon/goldvault-backend/pkg/outbox/payloads"
)

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service exposes operator actions on customer billing standing.
type Service interface {
	ClearBalance(ctx context.Context, customerID uuid.UUID) (*models.Customer, error)
}

type ServiceParams struct {
	DB     db.TxRunner
	Repo   Repository
	Outbox outboxEmitter
	Logger *logger.Logger
}

type service struct {
	db     db.TxRunner
	repo   Repository
	outbox outboxEmitter
	logg   *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, errors.New("db required")
	}
	if params.Repo == nil {
		return nil, errors.New("customer repository required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox emitter required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{db: params.DB, repo: params.Repo, outbox: params.Outbox, logg: logg}, nil
}

// ClearBalance manually returns a customer to active standing. Customers that are
// already active with nothing owed are left untouched and no event is queued.
func (s *service) ClearBalance(ctx context.Context, customerID uuid.UUID) (*models.Customer, error) {
	if customerID == uuid.Nil {
		return nil, errors.New("customer id required")
	}

	var result *models.Customer
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindByIDForUpdate(ctx, customerID)
		if err != nil {
			return err
		}
		if current.AccountStatus == enums.AccountStatusActive && current.OverdueAmount.IsZero() && current.GracePeriodEnds == nil {
			result = current
			return nil
		}

		if err := repo.ClearBalance(ctx, customerID); err != nil {
			return fmt.Errorf("clear balance: %w", err)
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventBalanceCleared,
			AggregateType: enums.AggregateCustomer,
			AggregateID:   customerID,
			Source:        &outbox.SourceRef{Service: "customers"},
			Data: payloads.BalanceClearedEvent{
				CustomerID:      customerID,
				PreviousStatus:  current.AccountStatus,
				PreviousOverdue: current.OverdueAmount,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return fmt.Errorf("queue balance cleared event: %w", err)
		}

		updated, err := repo.FindByID(ctx, customerID)
		if err != nil {
			return err
		}
		result = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithCustomerID(ctx, customerID.String())
	s.logg.Info(s.logg.WithField(logCtx, "account_status", result.AccountStatus), "customer balance cleared")
	return result, nil
}
