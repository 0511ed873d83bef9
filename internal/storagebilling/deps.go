package storagebilling

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/goldvault-backend/internal/holdings"
	"github.com/angelmondragon/goldvault-backend/pkg/db/models"
	"github.com/angelmondragon/goldvault-backend/pkg/enums"
	"github.com/angelmondragon/goldvault-backend/pkg/outbox"
)

type holdingStore interface {
	ListActiveForBilling(ctx context.Context) ([]holdings.BillableHolding, error)
	ListActiveForValuation(ctx context.Context) ([]holdings.ValuationInput, error)
	UpdateCurrentValue(ctx context.Context, holdingID uuid.UUID, value decimal.Decimal) error
}

type customerRefStore interface {
	SetStripeCustomerID(ctx context.Context, id uuid.UUID, stripeCustomerID string) error
}

type attemptStore interface {
	Begin(ctx context.Context, customerID uuid.UUID, periodStart time.Time) (*models.StorageBillingAttempt, error)
	Advance(ctx context.Context, id uuid.UUID, stage enums.BillingAttemptStage, invoiceID *string) error
	RecordError(ctx context.Context, id uuid.UUID, message string) error
}

type priceSource interface {
	Latest(ctx context.Context) (*models.GoldPricePoint, error)
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Recorder persists a customer's billing outcome atomically.
type Recorder interface {
	Record(ctx context.Context, out Outcome) error
}
