package storagebilling

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

	"github.com/angelmondragon/goldvault-backend/internal/customers"
	"github.com/angelmondragon/goldvault-backend/internal/holdings"
	"github.com/angelmondragon/goldvault-backend/internal/ledger"
	"github.com/angelmondragon/goldvault-backend/internal/prices"
	"github.com/angelmondragon/goldvault-backend/pkg/config"
	"github.com/angelmondragon/goldvault-backend/pkg/db"
	"github.com/angelmondragon/goldvault-backend/pkg/db/models"
	"github.com/angelmondragon/goldvault-backend/pkg/enums"
	"github.com/angelmondragon/goldvault-backend/pkg/outbox"
)

var billingSchema = []string{
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
	`CREATE TABLE gold_price_history (
  id TEXT PRIMARY KEY,
  price_per_g TEXT NOT NULL,
  recorded_at DATETIME NOT NULL
);`,
	`CREATE TABLE storage_billing (
  id TEXT PRIMARY KEY,
  customer_id TEXT NOT NULL,
  holding_id TEXT NOT NULL,
  amount TEXT NOT NULL,
  status TEXT NOT NULL,
  stripe_invoice_id TEXT NOT NULL,
  billing_period_start DATETIME NOT NULL,
  billing_period_end DATETIME NOT NULL,
  paid_at DATETIME,
  created_at DATETIME,
  CONSTRAINT storage_billing_holding_period_key UNIQUE (holding_id, billing_period_start)
);`,
	`CREATE TABLE storage_billing_attempts (
  id TEXT PRIMARY KEY,
  customer_id TEXT NOT NULL,
  billing_period_start DATETIME NOT NULL,
  stage TEXT NOT NULL,
  stripe_invoice_id TEXT,
  last_error TEXT,
  created_at DATETIME,
  updated_at DATETIME,
  CONSTRAINT storage_billing_attempts_customer_period_key UNIQUE (customer_id, billing_period_start)
);`,
	`CREATE TABLE outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`,
}

type billingEnv struct {
	conn    *gorm.DB
	gateway *fakeGateway
	product models.Product
	now     time.Time
}

func newBillingEnv(t *testing.T) *billingEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	for _, stmt := range billingSchema {
		require.NoError(t, conn.Exec(stmt).Error)
	}

	product := models.Product{
		ID:      uuid.New(),
		Name:    "100g minted bar",
		WeightG: decimal.RequireFromString("100"),
		Purity:  decimal.RequireFromString("0.9999"),
	}
	require.NoError(t, conn.Create(&product).Error)

	return &billingEnv{conn: conn, gateway: newFakeGateway(), product: product, now: testRunAt}
}

func (e *billingEnv) service(t *testing.T) Service {
	t.Helper()
	ledgerRepo := ledger.NewRepository(e.conn)
	customerRepo := customers.NewRepository(e.conn)
	attemptRepo := ledger.NewAttemptRepository(e.conn)

	recorder, err := NewTxRecorder(RecorderParams{
		DB:        db.FromConn(e.conn),
		Ledger:    ledgerRepo,
		Customers: customerRepo,
		Attempts:  attemptRepo,
		Outbox:    outbox.NewService(outbox.NewRepository(e.conn), nil),
	})
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Holdings:  holdings.NewRepository(e.conn),
		Customers: customerRepo,
		Attempts:  attemptRepo,
		Prices:    prices.NewRepository(e.conn),
		Gateway:   e.gateway,
		Recorder:  recorder,
		Config:    config.BillingConfig{GracePeriodDays: 14, Currency: "gbp", Workers: 1},
		Now:       func() time.Time { return e.now },
	})
	require.NoError(t, err)
	return svc
}

func (e *billingEnv) customer(t *testing.T, status enums.AccountStatus, gatewayRef *string) models.Customer {
	t.Helper()
	c := models.Customer{
		ID:               uuid.New(),
		FullName:         "Grace Hopper",
		Email:            "grace@example.com",
		StripeCustomerID: gatewayRef,
		AccountStatus:    status,
		OverdueAmount:    decimal.Zero,
	}
	if status == enums.AccountStatusGracePeriod {
		ends := e.now.Add(24 * time.Hour)
		c.GracePeriodEnds = &ends
		c.OverdueAmount = decimal.NewFromInt(10)
	}
	require.NoError(t, e.conn.Create(&c).Error)
	return c
}

func (e *billingEnv) holding(t *testing.T, customerID uuid.UUID, ref, fee string) models.VaultHolding {
	t.Helper()
	h := models.VaultHolding{
		ID:           uuid.New(),
		CustomerID:   customerID,
		ProductID:    e.product.ID,
		VaultRef:     ref,
		StorageFee:   decimal.RequireFromString(fee),
		Status:       enums.HoldingStatusActive,
		CurrentValue: decimal.Zero,
		AcquiredAt:   e.now.AddDate(-1, 0, 0),
	}
	require.NoError(t, e.conn.Create(&h).Error)
	return h
}

func (e *billingEnv) reload(t *testing.T, id uuid.UUID) models.Customer {
	t.Helper()
	var c models.Customer
	require.NoError(t, e.conn.Where("id = ?", id).Take(&c).Error)
	return c
}

func (e *billingEnv) ledgerRows(t *testing.T, customerID uuid.UUID) []models.StorageBilling {
	t.Helper()
	var rows []models.StorageBilling
	require.NoError(t, e.conn.Where("customer_id = ?", customerID).Order("billing_period_start ASC").Find(&rows).Error)
	return rows
}

func (e *billingEnv) events(t *testing.T, eventType enums.OutboxEventType) []models.OutboxEvent {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, e.conn.Where("event_type = ?", eventType).Find(&rows).Error)
	return rows
}

func TestEndToEndScenarioA(t *testing.T) {
	env := newBillingEnv(t)
	c := env.customer(t, enums.AccountStatusActive, nil)
	env.holding(t, c.ID, "PLX-001", "25.00")

	summary, err := env.service(t).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Success: 1, Errors: []string{}}, summary)

	assert.Len(t, env.gateway.created, 1)
	assert.Len(t, env.gateway.invoiceInputs, 1)
	items := env.gateway.itemsFor("in_1")
	require.Len(t, items, 1)
	assert.Equal(t, int64(2500), items[0].amountMinor)

	rows := env.ledgerRows(t, c.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.BillingStatusPaid, rows[0].Status)
	assert.NotNil(t, rows[0].PaidAt)
	assert.Equal(t, "in_1", rows[0].StripeInvoiceID)

	stored := env.reload(t, c.ID)
	assert.Equal(t, enums.AccountStatusActive, stored.AccountStatus)
	require.NotNil(t, stored.StripeCustomerID)
	assert.Equal(t, "cus_1", *stored.StripeCustomerID)

	assert.Len(t, env.events(t, enums.EventStorageInvoiceRecorded), 1)
	assert.Empty(t, env.events(t, enums.EventAccountStatusChanged))
}

func TestEndToEndScenariosBAndC(t *testing.T) {
	env := newBillingEnv(t)
	ref := "cus_existing"
	c := env.customer(t, enums.AccountStatusActive, &ref)
	env.holding(t, c.ID, "PLX-001", "15.00")
	env.holding(t, c.ID, "PLX-002", "25.00")
	env.gateway.decline[c.ID] = true

	summary, err := env.service(t).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Success)

	rows := env.ledgerRows(t, c.ID)
	require.Len(t, rows, 2)
	total := decimal.Zero
	for _, row := range rows {
		assert.Equal(t, enums.BillingStatusFailed, row.Status)
		assert.Nil(t, row.PaidAt)
		assert.Equal(t, rows[0].StripeInvoiceID, row.StripeInvoiceID)
		total = total.Add(row.Amount)
	}
	assert.True(t, total.Equal(decimal.NewFromInt(40)), "ledger rows must sum to the customer's fee, got %s", total)

	stored := env.reload(t, c.ID)
	assert.Equal(t, enums.AccountStatusGracePeriod, stored.AccountStatus)
	require.NotNil(t, stored.GracePeriodEnds)
	assert.True(t, stored.GracePeriodEnds.Equal(testRunAt.Add(14*24*time.Hour)))
	assert.True(t, stored.OverdueAmount.Equal(decimal.NewFromInt(40)))
	assert.Len(t, env.events(t, enums.EventAccountStatusChanged), 1)

	// next month, still declining
	env.now = testRunAt.AddDate(0, 1, 0)
	summary, err = env.service(t).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Success)

	stored = env.reload(t, c.ID)
	assert.Equal(t, enums.AccountStatusSuspended, stored.AccountStatus)
	assert.Nil(t, stored.GracePeriodEnds)
	assert.True(t, stored.OverdueAmount.Equal(decimal.NewFromInt(40)))
	assert.Len(t, env.ledgerRows(t, c.ID), 4)
	assert.Len(t, env.events(t, enums.EventAccountStatusChanged), 2)
}

func TestEndToEndRerunInSamePeriodDoesNotDoubleBill(t *testing.T) {
	env := newBillingEnv(t)
	c := env.customer(t, enums.AccountStatusActive, nil)
	env.holding(t, c.ID, "PLX-001", "25.00")
	svc := env.service(t)

	_, err := svc.Run(context.Background())
	require.NoError(t, err)

	summary, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Skipped: 1, Errors: []string{}}, summary)
	assert.Len(t, env.gateway.invoiceInputs, 1)
	assert.Len(t, env.ledgerRows(t, c.ID), 1)
}

func TestEndToEndGraceCustomerPaysBackToActive(t *testing.T) {
	env := newBillingEnv(t)
	ref := "cus_existing"
	c := env.customer(t, enums.AccountStatusGracePeriod, &ref)
	env.holding(t, c.ID, "PLX-001", "12.34")

	_, err := env.service(t).Run(context.Background())
	require.NoError(t, err)

	stored := env.reload(t, c.ID)
	assert.Equal(t, enums.AccountStatusActive, stored.AccountStatus)
	assert.Nil(t, stored.GracePeriodEnds)
	assert.True(t, stored.OverdueAmount.IsZero())
	assert.Len(t, env.events(t, enums.EventAccountStatusChanged), 1)
}

func TestEndToEndRevaluationUsesLatestPrice(t *testing.T) {
	env := newBillingEnv(t)
	c := env.customer(t, enums.AccountStatusActive, nil)
	h := env.holding(t, c.ID, "PLX-001", "0")

	repo := prices.NewRepository(env.conn)
	require.NoError(t, repo.Record(context.Background(), &models.GoldPricePoint{ID: uuid.New(), PricePerG: decimal.RequireFromString("50"), RecordedAt: testRunAt.Add(-time.Hour)}))
	require.NoError(t, repo.Record(context.Background(), &models.GoldPricePoint{ID: uuid.New(), PricePerG: decimal.RequireFromString("60.10"), RecordedAt: testRunAt}))

	svc := env.service(t)
	summary, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)

	var stored models.VaultHolding
	require.NoError(t, env.conn.Where("id = ?", h.ID).Take(&stored).Error)
	want := decimal.RequireFromString("6009.40")
	assert.True(t, stored.CurrentValue.Equal(want), "got %s", stored.CurrentValue)

	_, err = svc.Revalue(context.Background())
	require.NoError(t, err)
	require.NoError(t, env.conn.Where("id = ?", h.ID).Take(&stored).Error)
	assert.True(t, stored.CurrentValue.Equal(want), "revaluation must be stable under a constant price")
}

func TestAssembleWiresRepositories(t *testing.T) {
	env := newBillingEnv(t)
	c := env.customer(t, enums.AccountStatusActive, nil)
	env.holding(t, c.ID, "PLX-001", "25.00")

	svc, err := Assemble(Dependencies{
		Conn:    env.conn,
		Tx:      db.FromConn(env.conn),
		Gateway: env.gateway,
		Config:  config.BillingConfig{GracePeriodDays: 14, Currency: "gbp", Workers: 2},
	})
	require.NoError(t, err)

	summary, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Success)
	assert.Len(t, env.ledgerRows(t, c.ID), 1)
}

func TestAssembleValidation(t *testing.T) {
	_, err := Assemble(Dependencies{})
	require.EqualError(t, err, "db connection required")

	env := newBillingEnv(t)
	_, err = Assemble(Dependencies{Conn: env.conn, Tx: db.FromConn(env.conn), Config: config.BillingConfig{Currency: "gbp"}})
	require.EqualError(t, err, "payment gateway required")
}
