package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product describes a bullion unit. The catalog owns it; billing only reads weight and purity.
type Product struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string          `gorm:"column:name;not null"`
	WeightG   decimal.Decimal `gorm:"column:weight_g;type:numeric(12,4);not null"`
	Purity    decimal.Decimal `gorm:"column:purity;type:numeric(6,5);not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}
