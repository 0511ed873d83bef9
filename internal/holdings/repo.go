package holdings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/goldvault-backend/pkg/db/models"
	"github.com/angelmondragon/goldvault-backend/pkg/enums"
)

const maxListLimit = 500

// ErrHoldingNotFound is returned when an update targets a missing holding.
var ErrHoldingNotFound = errors.New("holding not found")

// Repository handles vault holding persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	List(ctx context.Context, query ListQuery) ([]models.VaultHolding, error)
	ListActiveForBilling(ctx context.Context) ([]BillableHolding, error)
	ListActiveForValuation(ctx context.Context) ([]ValuationInput, error)
	UpdateCurrentValue(ctx context.Context, holdingID uuid.UUID, value decimal.Decimal) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a holdings repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) List(ctx context.Context, query ListQuery) ([]models.VaultHolding, error) {
	for _, status := range query.Statuses {
		if !status.IsValid() {
			return nil, fmt.Errorf("invalid holding status %q", status)
		}
	}

	limit := query.Limit
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	db := r.db.WithContext(ctx).Model(&models.VaultHolding{})
	if len(query.Statuses) > 0 {
		db = db.Where("status IN ?", query.Statuses)
	}
	if query.CustomerID != nil {
		db = db.Where("customer_id = ?", *query.CustomerID)
	}
	if prefix := strings.TrimSpace(query.VaultRefPrefix); prefix != "" {
		db = db.Where(`vault_ref LIKE ? ESCAPE '\'`, escapeLike(prefix)+"%")
	}
	if query.AcquiredFrom != nil {
		db = db.Where("acquired_at >= ?", query.AcquiredFrom.UTC())
	}
	if query.AcquiredTo != nil {
		db = db.Where("acquired_at <= ?", query.AcquiredTo.UTC())
	}

	var rows []models.VaultHolding
	if err := db.
		Order("acquired_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListActiveForBilling returns every active holding with its owner's billing fields,
// ordered by customer then vault reference.
func (r *repository) ListActiveForBilling(ctx context.Context) ([]BillableHolding, error) {
	var rows []BillableHolding
	err := r.db.WithContext(ctx).
		Table("vault_holdings AS h").
		Select(`h.id AS holding_id, h.customer_id, h.vault_ref, h.storage_fee,
c.full_name, c.email, c.stripe_customer_id, c.account_status`).
		Joins("JOIN customers c ON c.id = h.customer_id").
		Where("h.status = ?", enums.HoldingStatusActive).
		Order("h.customer_id ASC").
		Order("h.vault_ref ASC").
		Order("h.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListActiveForValuation returns active holdings with product weight and purity.
func (r *repository) ListActiveForValuation(ctx context.Context) ([]ValuationInput, error) {
	var rows []ValuationInput
	err := r.db.WithContext(ctx).
		Table("vault_holdings AS h").
		Select("h.id AS holding_id, h.current_value, p.weight_g, p.purity").
		Joins("JOIN products p ON p.id = h.product_id").
		Where("h.status = ?", enums.HoldingStatusActive).
		Order("h.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) UpdateCurrentValue(ctx context.Context, holdingID uuid.UUID, value decimal.Decimal) error {
	res := r.db.WithContext(ctx).
		Model(&models.VaultHolding{}).
		Where("id = ?", holdingID).
		Update("current_value", value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrHoldingNotFound
	}
	return nil
}

func escapeLike(value string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(value)
}
