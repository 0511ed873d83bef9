package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/goldvault-backend/pkg/db"
	"github.com/angelmondragon/goldvault-backend/pkg/db/models"
)

// ErrAlreadyBilled reports a holding that already has a ledger row for the period.
var ErrAlreadyBilled = errors.New("holding already billed for period")

// Repository manages persistence for storage billing ledger rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateBatch(ctx context.Context, rows []models.StorageBilling) error
	ListByCustomerPeriod(ctx context.Context, customerID uuid.UUID, periodStart time.Time) ([]models.StorageBilling, error)
	ListByInvoice(ctx context.Context, invoiceID string) ([]models.StorageBilling, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateBatch(ctx context.Context, rows []models.StorageBilling) error {
	if len(rows) == 0 {
		return nil
	}
	for i := range rows {
		if rows[i].ID == uuid.Nil {
			rows[i].ID = uuid.New()
		}
	}
	if err := r.db.WithContext(ctx).Create(&rows).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return fmt.Errorf("%w: %w", ErrAlreadyBilled, err)
		}
		return err
	}
	return nil
}

func (r *repository) ListByCustomerPeriod(ctx context.Context, customerID uuid.UUID, periodStart time.Time) ([]models.StorageBilling, error) {
	var rows []models.StorageBilling
	if err := r.db.WithContext(ctx).
		Where("customer_id = ? AND billing_period_start = ?", customerID, periodStart.UTC()).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListByInvoice(ctx context.Context, invoiceID string) ([]models.StorageBilling, error) {
	var rows []models.StorageBilling
	if err := r.db.WithContext(ctx).
		Where("stripe_invoice_id = ?", invoiceID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
