package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GoldPricePoint is one entry of the append-only gold price series.
type GoldPricePoint struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PricePerG  decimal.Decimal `gorm:"column:price_per_g;type:numeric(12,4);not null"`
	RecordedAt time.Time       `gorm:"column:recorded_at;not null"`
}

func (GoldPricePoint) TableName() string { return "gold_price_history" }
