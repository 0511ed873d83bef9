package holdings

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/goldvault-backend/pkg/db/models"
	"github.com/angelmondragon/goldvault-backend/pkg/enums"
)

func setupHoldingsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	for _, stmt := range []string{
		`CREATE TABLE customers (
  id TEXT PRIMARY KEY,
  full_name TEXT NOT NULL,
  email TEXT NOT NULL,
  phone TEXT,
  stripe_customer_id TEXT,
  account_status TEXT NOT NULL DEFAULT 'active',
  grace_period_ends DATETIME,
  overdue_amount TEXT NOT NULL DEFAULT '0',
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE products (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  weight_g TEXT NOT NULL,
  purity TEXT NOT NULL,
  created_at DATETIME
);`,
		`CREATE TABLE vault_holdings (
  id TEXT PRIMARY KEY,
  customer_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  vault_ref TEXT NOT NULL,
  storage_fee TEXT NOT NULL DEFAULT '0',
  status TEXT NOT NULL DEFAULT 'active',
  current_value TEXT NOT NULL DEFAULT '0',
  acquired_at DATETIME NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
	} {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type holdingsFixture struct {
	db      *gorm.DB
	product models.Product
}

func newHoldingsFixture(t *testing.T) *holdingsFixture {
	db := setupHoldingsTestDB(t)
	product := models.Product{
		ID:      uuid.New(),
		Name:    "1kg cast bar",
		WeightG: decimal.RequireFromString("1000"),
		Purity:  decimal.RequireFromString("0.9999"),
	}
	require.NoError(t, db.Create(&product).Error)
	return &holdingsFixture{db: db, product: product}
}

func (f *holdingsFixture) customer(t *testing.T, name string, ref *string) models.Customer {
	t.Helper()
	c := models.Customer{
		ID:               uuid.New(),
		FullName:         name,
		Email:            name + "@example.com",
		StripeCustomerID: ref,
		AccountStatus:    enums.AccountStatusActive,
		OverdueAmount:    decimal.Zero,
	}
	require.NoError(t, f.db.Create(&c).Error)
	return c
}

func (f *holdingsFixture) holding(t *testing.T, customerID uuid.UUID, ref, fee string, status enums.HoldingStatus, acquired time.Time) models.VaultHolding {
	t.Helper()
	h := models.VaultHolding{
		ID:           uuid.New(),
		CustomerID:   customerID,
		ProductID:    f.product.ID,
		VaultRef:     ref,
		StorageFee:   decimal.RequireFromString(fee),
		Status:       status,
		CurrentValue: decimal.Zero,
		AcquiredAt:   acquired,
	}
	require.NoError(t, f.db.Create(&h).Error)
	return h
}

func TestListActiveForBillingJoinsCustomerFields(t *testing.T) {
	f := newHoldingsFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()
	ref := "cus_123"

	alice := f.customer(t, "alice", &ref)
	bob := f.customer(t, "bob", nil)
	f.holding(t, alice.ID, "PLX-002", "25.00", enums.HoldingStatusActive, now)
	f.holding(t, alice.ID, "PLX-001", "15.00", enums.HoldingStatusActive, now)
	f.holding(t, alice.ID, "PLX-009", "99.00", enums.HoldingStatusSold, now)
	f.holding(t, bob.ID, "LDN-001", "10.00", enums.HoldingStatusActive, now)
	f.holding(t, bob.ID, "LDN-002", "10.00", enums.HoldingStatusReleased, now)

	rows, err := NewRepository(f.db).ListActiveForBilling(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	byCustomer := map[uuid.UUID][]BillableHolding{}
	for _, row := range rows {
		byCustomer[row.CustomerID] = append(byCustomer[row.CustomerID], row)
	}

	aliceRows := byCustomer[alice.ID]
	require.Len(t, aliceRows, 2)
	assert.Equal(t, "PLX-001", aliceRows[0].VaultRef)
	assert.Equal(t, "PLX-002", aliceRows[1].VaultRef)
	require.NotNil(t, aliceRows[0].StripeCustomerID)
	assert.Equal(t, "cus_123", *aliceRows[0].StripeCustomerID)
	assert.Equal(t, "alice@example.com", aliceRows[0].Email)
	assert.Equal(t, enums.AccountStatusActive, aliceRows[0].AccountStatus)
	assert.True(t, aliceRows[0].StorageFee.Equal(decimal.RequireFromString("15")))

	bobRows := byCustomer[bob.ID]
	require.Len(t, bobRows, 1)
	assert.Nil(t, bobRows[0].StripeCustomerID)
	assert.Equal(t, "bob", bobRows[0].FullName)
}

func TestListAppliesFilters(t *testing.T) {
	f := newHoldingsFixture(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	alice := f.customer(t, "alice", nil)
	bob := f.customer(t, "bob", nil)
	f.holding(t, alice.ID, "PLX-001", "1", enums.HoldingStatusActive, base)
	f.holding(t, alice.ID, "PLX-002", "1", enums.HoldingStatusSold, base.AddDate(0, 1, 0))
	f.holding(t, alice.ID, "LDN-001", "1", enums.HoldingStatusActive, base.AddDate(0, 2, 0))
	f.holding(t, bob.ID, "PLX_003", "1", enums.HoldingStatusActive, base)

	repo := NewRepository(f.db)

	rows, err := repo.List(ctx, ListQuery{CustomerID: &alice.ID})
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	rows, err = repo.List(ctx, ListQuery{Statuses: []enums.HoldingStatus{enums.HoldingStatusActive}, VaultRefPrefix: "PLX"})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	rows, err = repo.List(ctx, ListQuery{VaultRefPrefix: "PLX_"})
	require.NoError(t, err)
	require.Len(t, rows, 1, "underscore in prefix must match literally")
	assert.Equal(t, "PLX_003", rows[0].VaultRef)

	from := base.AddDate(0, 0, 15)
	to := base.AddDate(0, 1, 15)
	rows, err = repo.List(ctx, ListQuery{AcquiredFrom: &from, AcquiredTo: &to})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "PLX-002", rows[0].VaultRef)

	rows, err = repo.List(ctx, ListQuery{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestListRejectsUnknownStatus(t *testing.T) {
	f := newHoldingsFixture(t)
	_, err := NewRepository(f.db).List(context.Background(), ListQuery{Statuses: []enums.HoldingStatus{"melted"}})
	require.Error(t, err)
}

func TestValuationAndUpdateCurrentValue(t *testing.T) {
	f := newHoldingsFixture(t)
	ctx := context.Background()
	alice := f.customer(t, "alice", nil)
	active := f.holding(t, alice.ID, "PLX-001", "10", enums.HoldingStatusActive, time.Now().UTC())
	f.holding(t, alice.ID, "PLX-002", "10", enums.HoldingStatusTransferred, time.Now().UTC())

	repo := NewRepository(f.db)
	inputs, err := repo.ListActiveForValuation(ctx)
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	assert.Equal(t, active.ID, inputs[0].HoldingID)
	assert.True(t, inputs[0].WeightG.Equal(decimal.RequireFromString("1000")))
	assert.True(t, inputs[0].Purity.Equal(decimal.RequireFromString("0.9999")))

	value := decimal.RequireFromString("62993.70")
	require.NoError(t, repo.UpdateCurrentValue(ctx, active.ID, value))

	var stored models.VaultHolding
	require.NoError(t, f.db.First(&stored, "id = ?", active.ID).Error)
	assert.True(t, stored.CurrentValue.Equal(value), "got %s", stored.CurrentValue)

	require.ErrorIs(t, repo.UpdateCurrentValue(ctx, uuid.New(), value), ErrHoldingNotFound)
}

func TestWithTxNilReturnsSameRepository(t *testing.T) {
	repo := NewRepository(setupHoldingsTestDB(t))
	assert.Same(t, repo, repo.WithTx(nil))
}
