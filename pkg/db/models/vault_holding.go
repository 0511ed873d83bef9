package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/goldvault-backend/pkg/enums"
)

// VaultHolding is a customer's custody position in one bar stored in the vault network.
type VaultHolding struct {
	ID           uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID   uuid.UUID           `gorm:"column:customer_id;type:uuid;not null"`
	ProductID    uuid.UUID           `gorm:"column:product_id;type:uuid;not null"`
	VaultRef     string              `gorm:"column:vault_ref;not null"`
	StorageFee   decimal.Decimal     `gorm:"column:storage_fee;type:numeric(12,2);not null;default:0"`
	Status       enums.HoldingStatus `gorm:"column:status;type:holding_status;not null;default:active"`
	CurrentValue decimal.Decimal     `gorm:"column:current_value;type:numeric(14,2);not null;default:0"`
	AcquiredAt   time.Time           `gorm:"column:acquired_at;not null"`
	CreatedAt    time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
