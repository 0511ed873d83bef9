package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/goldvault-backend/pkg/enums"
)

// Customer carries the billing-relevant slice of a vault customer.
type Customer struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	FullName         string              `gorm:"column:full_name;not null"`
	Email            string              `gorm:"column:email;not null"`
	Phone            *string             `gorm:"column:phone"`
	StripeCustomerID *string             `gorm:"column:stripe_customer_id"`
	AccountStatus    enums.AccountStatus `gorm:"column:account_status;type:account_status;not null;default:active"`
	GracePeriodEnds  *time.Time          `gorm:"column:grace_period_ends"`
	OverdueAmount    decimal.Decimal     `gorm:"column:overdue_amount;type:numeric(12,2);not null;default:0"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
