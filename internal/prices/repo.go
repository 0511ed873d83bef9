package prices

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/angelmondragon/goldvault-backend/pkg/db/models"
)

// Repository reads the gold price series.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Latest(ctx context.Context) (*models.GoldPricePoint, error)
	Record(ctx context.Context, point *models.GoldPricePoint) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a price repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Latest returns the most recently recorded price point, or nil when the series is empty.
func (r *repository) Latest(ctx context.Context) (*models.GoldPricePoint, error) {
	var point models.GoldPricePoint
	err := r.db.WithContext(ctx).
		Order("recorded_at DESC").
		Order("id DESC").
		Limit(1).
		Take(&point).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &point, nil
}

func (r *repository) Record(ctx context.Context, point *models.GoldPricePoint) error {
	if point == nil {
		return errors.New("price point required")
	}
	return r.db.WithContext(ctx).Create(point).Error
}
