package storagebilling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/goldvault-backend/internal/accountstatus"
	"github.com/angelmondragon/goldvault-backend/internal/customers"
	"github.com/angelmondragon/goldvault-backend/internal/holdings"
	"github.com/angelmondragon/goldvault-backend/internal/ledger"
	"github.com/angelmondragon/goldvault-backend/pkg/db"
	"github.com/angelmondragon/goldvault-backend/pkg/enums"
	"github.com/angelmondragon/goldvault-backend/pkg/outbox"
)

type failingEmitter struct {
	calls int
	err   error
}

func (f *failingEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.calls++
	return f.err
}

func recorderOutcome(t *testing.T, env *billingEnv, attemptRepo ledger.AttemptRepository) (Outcome, uuid.UUID) {
	t.Helper()
	c := env.customer(t, enums.AccountStatusActive, nil)
	h := env.holding(t, c.ID, "PLX-001", "25.00")
	period := PeriodFor(env.now)

	attempt, err := attemptRepo.Begin(context.Background(), c.ID, period.Start)
	require.NoError(t, err)

	batches := GroupByCustomer([]holdings.BillableHolding{{
		HoldingID:     h.ID,
		CustomerID:    c.ID,
		VaultRef:      h.VaultRef,
		StorageFee:    h.StorageFee,
		FullName:      c.FullName,
		Email:         c.Email,
		AccountStatus: c.AccountStatus,
	}})
	require.Len(t, batches, 1)

	return Outcome{
		RunID:     "run-1",
		AttemptID: attempt.ID,
		Batch:     batches[0],
		Period:    period,
		InvoiceID: "in_1",
		Standing:  accountstatus.Transition(c.AccountStatus, false, batches[0].TotalFee(), env.now, 14*24*time.Hour),
		Currency:  "gbp",
	}, c.ID
}

func TestTxRecorderCommitsEverything(t *testing.T) {
	env := newBillingEnv(t)
	attemptRepo := ledger.NewAttemptRepository(env.conn)
	out, customerID := recorderOutcome(t, env, attemptRepo)

	rec, err := NewTxRecorder(RecorderParams{
		DB:        db.FromConn(env.conn),
		Ledger:    ledger.NewRepository(env.conn),
		Customers: customers.NewRepository(env.conn),
		Attempts:  attemptRepo,
		Outbox:    outbox.NewService(outbox.NewRepository(env.conn), nil),
	})
	require.NoError(t, err)
	require.NoError(t, rec.Record(context.Background(), out))

	rows := env.ledgerRows(t, customerID)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.BillingStatusFailed, rows[0].Status)

	stored := env.reload(t, customerID)
	assert.Equal(t, enums.AccountStatusGracePeriod, stored.AccountStatus)
	assert.True(t, stored.OverdueAmount.Equal(decimal.NewFromInt(25)))

	attempt, err := attemptRepo.Find(context.Background(), customerID, out.Period.Start)
	require.NoError(t, err)
	require.NotNil(t, attempt)
	assert.Equal(t, enums.BillingAttemptRecorded, attempt.Stage)
	require.NotNil(t, attempt.StripeInvoiceID)
	assert.Equal(t, "in_1", *attempt.StripeInvoiceID)

	assert.Len(t, env.events(t, enums.EventStorageInvoiceRecorded), 1)
	assert.Len(t, env.events(t, enums.EventAccountStatusChanged), 1)
}

func TestTxRecorderRollsBackOnEmitFailure(t *testing.T) {
	env := newBillingEnv(t)
	attemptRepo := ledger.NewAttemptRepository(env.conn)
	out, customerID := recorderOutcome(t, env, attemptRepo)

	emitter := &failingEmitter{err: errors.New("outbox down")}
	rec, err := NewTxRecorder(RecorderParams{
		DB:        db.FromConn(env.conn),
		Ledger:    ledger.NewRepository(env.conn),
		Customers: customers.NewRepository(env.conn),
		Attempts:  attemptRepo,
		Outbox:    emitter,
	})
	require.NoError(t, err)

	err = rec.Record(context.Background(), out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue invoice recorded event")
	assert.Equal(t, 1, emitter.calls)

	assert.Empty(t, env.ledgerRows(t, customerID))
	stored := env.reload(t, customerID)
	assert.Equal(t, enums.AccountStatusActive, stored.AccountStatus)
	assert.True(t, stored.OverdueAmount.IsZero())

	attempt, err := attemptRepo.Find(context.Background(), customerID, out.Period.Start)
	require.NoError(t, err)
	require.NotNil(t, attempt)
	assert.Equal(t, enums.BillingAttemptStarted, attempt.Stage)
}

func TestNewTxRecorderValidation(t *testing.T) {
	_, err := NewTxRecorder(RecorderParams{})
	require.EqualError(t, err, "db required")
}
