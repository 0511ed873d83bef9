package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/goldvault-backend/pkg/enums"
)

// StorageBilling is an immutable ledger row: one billed holding in one period.
type StorageBilling struct {
	ID                 uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID         uuid.UUID           `gorm:"column:customer_id;type:uuid;not null"`
	HoldingID          uuid.UUID           `gorm:"column:holding_id;type:uuid;not null"`
	Amount             decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	Status             enums.BillingStatus `gorm:"column:status;type:billing_status;not null"`
	StripeInvoiceID    string              `gorm:"column:stripe_invoice_id;not null"`
	BillingPeriodStart time.Time           `gorm:"column:billing_period_start;not null"`
	BillingPeriodEnd   time.Time           `gorm:"column:billing_period_end;not null"`
	PaidAt             *time.Time          `gorm:"column:paid_at"`
	CreatedAt          time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (StorageBilling) TableName() string { return "storage_billing" }
