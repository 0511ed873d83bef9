package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/goldvault-backend/pkg/db"
	"github.com/angelmondragon/goldvault-backend/pkg/db/models"
	"github.com/angelmondragon/goldvault-backend/pkg/enums"
)

const maxAttemptErrorLength = 1024

// ErrAttemptNotFound is returned when a stage update targets a missing attempt.
var ErrAttemptNotFound = errors.New("billing attempt not found")

// AttemptRepository tracks per-customer progress through a billing period.
type AttemptRepository interface {
	WithTx(tx *gorm.DB) AttemptRepository
	Begin(ctx context.Context, customerID uuid.UUID, periodStart time.Time) (*models.StorageBillingAttempt, error)
	Find(ctx context.Context, customerID uuid.UUID, periodStart time.Time) (*models.StorageBillingAttempt, error)
	Advance(ctx context.Context, id uuid.UUID, stage enums.BillingAttemptStage, invoiceID *string) error
	RecordError(ctx context.Context, id uuid.UUID, message string) error
}

type attemptRepository struct {
	db *gorm.DB
}

// NewAttemptRepository returns an attempt repository bound to the provided database.
func NewAttemptRepository(db *gorm.DB) AttemptRepository {
	return &attemptRepository{db: db}
}

func (r *attemptRepository) WithTx(tx *gorm.DB) AttemptRepository {
	if tx == nil {
		return r
	}
	return &attemptRepository{db: tx}
}

// Begin returns the attempt for (customer, period), creating it at the started stage
// when none exists yet.
func (r *attemptRepository) Begin(ctx context.Context, customerID uuid.UUID, periodStart time.Time) (*models.StorageBillingAttempt, error) {
	attempt := models.StorageBillingAttempt{
		ID:                 uuid.New(),
		CustomerID:         customerID,
		BillingPeriodStart: periodStart.UTC(),
		Stage:              enums.BillingAttemptStarted,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "customer_id"}, {Name: "billing_period_start"}},
			DoNothing: true,
		}).
		Create(&attempt).Error
	if err != nil {
		return nil, err
	}

	existing, err := r.Find(ctx, customerID, periodStart)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrAttemptNotFound
	}
	return existing, nil
}

// Find returns nil when no attempt exists for (customer, period).
func (r *attemptRepository) Find(ctx context.Context, customerID uuid.UUID, periodStart time.Time) (*models.StorageBillingAttempt, error) {
	var attempt models.StorageBillingAttempt
	err := r.db.WithContext(ctx).
		Where("customer_id = ? AND billing_period_start = ?", customerID, periodStart.UTC()).
		Take(&attempt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

// Advance moves the attempt to stage and clears the last error. A nil invoiceID
// leaves the stored invoice reference untouched.
func (r *attemptRepository) Advance(ctx context.Context, id uuid.UUID, stage enums.BillingAttemptStage, invoiceID *string) error {
	if !stage.IsValid() {
		return errors.New("valid billing attempt stage required")
	}
	values := map[string]any{
		"stage":      stage,
		"last_error": nil,
	}
	if invoiceID != nil {
		values["stripe_invoice_id"] = *invoiceID
	}
	return r.updates(ctx, id, values)
}

func (r *attemptRepository) RecordError(ctx context.Context, id uuid.UUID, message string) error {
	return r.updates(ctx, id, map[string]any{"last_error": db.TruncateText(message, maxAttemptErrorLength)})
}

func (r *attemptRepository) updates(ctx context.Context, id uuid.UUID, values map[string]any) error {
	res := r.db.WithContext(ctx).
		Model(&models.StorageBillingAttempt{}).
		Where("id = ?", id).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAttemptNotFound
	}
	return nil
}
