package holdings

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/goldvault-backend/pkg/enums"
)

// BillableHolding is an active holding joined with the owner's billing contact fields.
type BillableHolding struct {
	HoldingID        uuid.UUID           `gorm:"column:holding_id"`
	CustomerID       uuid.UUID           `gorm:"column:customer_id"`
	VaultRef         string              `gorm:"column:vault_ref"`
	StorageFee       decimal.Decimal     `gorm:"column:storage_fee"`
	FullName         string              `gorm:"column:full_name"`
	Email            string              `gorm:"column:email"`
	StripeCustomerID *string             `gorm:"column:stripe_customer_id"`
	AccountStatus    enums.AccountStatus `gorm:"column:account_status"`
}

// ValuationInput carries what the revaluation pass needs to price one holding.
type ValuationInput struct {
	HoldingID    uuid.UUID       `gorm:"column:holding_id"`
	CurrentValue decimal.Decimal `gorm:"column:current_value"`
	WeightG      decimal.Decimal `gorm:"column:weight_g"`
	Purity       decimal.Decimal `gorm:"column:purity"`
}

// ListQuery enumerates the filters the holding store understands.
// Zero values mean "no filter".
type ListQuery struct {
	Statuses       []enums.HoldingStatus
	CustomerID     *uuid.UUID
	VaultRefPrefix string
	AcquiredFrom   *time.Time
	AcquiredTo     *time.Time
	Limit          int
}
