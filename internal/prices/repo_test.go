package prices

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/goldvault-backend/pkg/db/models"
)

func setupPricesTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.Exec(`
CREATE TABLE gold_price_history (
  id TEXT PRIMARY KEY,
  price_per_g TEXT NOT NULL,
  recorded_at DATETIME NOT NULL
);`).Error)
	return db
}

func TestLatestReturnsNilWhenEmpty(t *testing.T) {
	repo := NewRepository(setupPricesTestDB(t))

	point, err := repo.Latest(context.Background())
	require.NoError(t, err)
	require.Nil(t, point)
}

func TestLatestPicksMostRecentPoint(t *testing.T) {
	repo := NewRepository(setupPricesTestDB(t))
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	for i, price := range []string{"61.10", "63.25", "62.00"} {
		require.NoError(t, repo.Record(ctx, &models.GoldPricePoint{
			ID:         uuid.New(),
			PricePerG:  decimal.RequireFromString(price),
			RecordedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	point, err := repo.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, point)
	require.True(t, point.PricePerG.Equal(decimal.RequireFromString("62.00")), "got %s", point.PricePerG)
}

func TestRecordRequiresPoint(t *testing.T) {
	repo := NewRepository(setupPricesTestDB(t))
	require.Error(t, repo.Record(context.Background(), nil))
}
