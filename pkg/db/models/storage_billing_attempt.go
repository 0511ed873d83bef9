package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/goldvault-backend/pkg/enums"
)

// StorageBillingAttempt records how far a customer's billing run for one period progressed.
type StorageBillingAttempt struct {
	ID                 uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID         uuid.UUID                 `gorm:"column:customer_id;type:uuid;not null"`
	BillingPeriodStart time.Time                 `gorm:"column:billing_period_start;not null"`
	Stage              enums.BillingAttemptStage `gorm:"column:stage;type:billing_attempt_stage;not null"`
	StripeInvoiceID    *string                   `gorm:"column:stripe_invoice_id"`
	LastError          *string                   `gorm:"column:last_error"`
	CreatedAt          time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}
