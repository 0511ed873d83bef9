package customers

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/goldvault-backend/internal/accountstatus"
	"github.com/angelmondragon/goldvault-backend/pkg/db/models"
)

// ErrCustomerNotFound is returned when the customer row does not exist.
var ErrCustomerNotFound = errors.New("customer not found")

// Repository handles the billing fields of customer rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	SetStripeCustomerID(ctx context.Context, id uuid.UUID, stripeCustomerID string) error
	ApplyStanding(ctx context.Context, id uuid.UUID, standing accountstatus.Standing) error
	ClearBalance(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a customer repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	return r.find(r.db.WithContext(ctx), id)
}

// FindByIDForUpdate row-locks the customer until the surrounding transaction ends.
func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *repository) find(db *gorm.DB, id uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	if err := db.Where("id = ?", id).Take(&customer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return &customer, nil
}

func (r *repository) SetStripeCustomerID(ctx context.Context, id uuid.UUID, stripeCustomerID string) error {
	stripeCustomerID = strings.TrimSpace(stripeCustomerID)
	if stripeCustomerID == "" {
		return errors.New("stripe customer id required")
	}
	return r.updates(ctx, id, map[string]any{"stripe_customer_id": stripeCustomerID})
}

// ApplyStanding writes status, grace end and overdue amount together.
func (r *repository) ApplyStanding(ctx context.Context, id uuid.UUID, standing accountstatus.Standing) error {
	if !standing.Status.IsValid() {
		return errors.New("valid account status required")
	}
	return r.updates(ctx, id, map[string]any{
		"account_status":    standing.Status,
		"grace_period_ends": standing.GracePeriodEnds,
		"overdue_amount":    standing.OverdueAmount,
	})
}

// ClearBalance resets the customer to active with nothing owed.
func (r *repository) ClearBalance(ctx context.Context, id uuid.UUID) error {
	return r.ApplyStanding(ctx, id, accountstatus.Active())
}

func (r *repository) updates(ctx context.Context, id uuid.UUID, values map[string]any) error {
	res := r.db.WithContext(ctx).
		Model(&models.Customer{}).
		Where("id = ?", id).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrCustomerNotFound
	}
	return nil
}
