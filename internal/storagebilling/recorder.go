package storagebilling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/goldvault-backend/internal/accountstatus"
	"github.com/angelmondragon/goldvault-backend/internal/customers"
	"github.com/angelmondragon/goldvault-backend/internal/ledger"
	"github.com/angelmondragon/goldvault-backend/pkg/db"
	"github.com/angelmondragon/goldvault-backend/pkg/enums"
	"github.com/angelmondragon/goldvault-backend/pkg/outbox"
	"github.com/angelmondragon/goldvault-backend/pkg/outbox/payloads"
)

const sourceService = "storage-billing"

// Outcome is everything the local side of a customer's billing needs to commit.
type Outcome struct {
	RunID     string
	AttemptID uuid.UUID
	Batch     CustomerBatch
	Period    Period
	InvoiceID string
	Paid      bool
	PaidAt    *time.Time
	Standing  accountstatus.Standing
	Currency  string
}

// RecorderParams wires the transactional recorder.
type RecorderParams struct {
	DB        db.TxRunner
	Ledger    ledger.Repository
	Customers customers.Repository
	Attempts  ledger.AttemptRepository
	Outbox    outboxEmitter
}

// TxRecorder writes ledger rows, the new standing, the attempt marker and the
// outbox events in one transaction.
type TxRecorder struct {
	db        db.TxRunner
	ledger    ledger.Repository
	customers customers.Repository
	attempts  ledger.AttemptRepository
	outbox    outboxEmitter
}

func NewTxRecorder(params RecorderParams) (*TxRecorder, error) {
	if params.DB == nil {
		return nil, errors.New("db required")
	}
	if params.Ledger == nil {
		return nil, errors.New("ledger repository required")
	}
	if params.Customers == nil {
		return nil, errors.New("customer repository required")
	}
	if params.Attempts == nil {
		return nil, errors.New("attempt repository required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox emitter required")
	}
	return &TxRecorder{
		db:        params.DB,
		ledger:    params.Ledger,
		customers: params.Customers,
		attempts:  params.Attempts,
		outbox:    params.Outbox,
	}, nil
}

func (r *TxRecorder) Record(ctx context.Context, out Outcome) error {
	batch := out.Batch
	customerID := batch.CustomerID()

	lines := make([]ledger.InvoiceLine, 0, len(batch.holdings))
	for _, h := range batch.holdings {
		lines = append(lines, ledger.InvoiceLine{HoldingID: h.ID, Amount: h.StorageFee})
	}

	return r.db.WithTx(ctx, func(tx *gorm.DB) error {
		ledgerSvc, err := ledger.NewService(r.ledger.WithTx(tx))
		if err != nil {
			return err
		}
		if _, err := ledgerSvc.RecordInvoice(ctx, ledger.RecordInvoiceInput{
			CustomerID:  customerID,
			InvoiceID:   out.InvoiceID,
			PeriodStart: out.Period.Start,
			PeriodEnd:   out.Period.End,
			Paid:        out.Paid,
			PaidAt:      out.PaidAt,
			Lines:       lines,
		}); err != nil {
			return fmt.Errorf("insert ledger rows: %w", err)
		}

		if err := r.customers.WithTx(tx).ApplyStanding(ctx, customerID, out.Standing); err != nil {
			return fmt.Errorf("update account status: %w", err)
		}

		invoiceID := out.InvoiceID
		if err := r.attempts.WithTx(tx).Advance(ctx, out.AttemptID, enums.BillingAttemptRecorded, &invoiceID); err != nil {
			return fmt.Errorf("mark attempt recorded: %w", err)
		}

		source := &outbox.SourceRef{Service: sourceService, RunID: out.RunID}
		if err := r.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStorageInvoiceRecorded,
			AggregateType: enums.AggregateStorageInvoice,
			AggregateID:   customerID,
			Source:        source,
			Data: payloads.StorageInvoiceRecordedEvent{
				CustomerID:  customerID,
				InvoiceID:   out.InvoiceID,
				PeriodStart: out.Period.Start,
				PeriodEnd:   out.Period.End,
				TotalFee:    batch.TotalFee(),
				Currency:    out.Currency,
				Paid:        out.Paid,
				PaidAt:      out.PaidAt,
				HoldingIDs:  batch.HoldingIDs(),
			},
		}); err != nil {
			return fmt.Errorf("queue invoice recorded event: %w", err)
		}

		from := accountstatus.Normalize(batch.AccountStatus())
		if from == out.Standing.Status {
			return nil
		}
		if err := r.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAccountStatusChanged,
			AggregateType: enums.AggregateCustomer,
			AggregateID:   customerID,
			Source:        source,
			Data: payloads.AccountStatusChangedEvent{
				CustomerID:      customerID,
				From:            from,
				To:              out.Standing.Status,
				GracePeriodEnds: out.Standing.GracePeriodEnds,
				OverdueAmount:   out.Standing.OverdueAmount,
			},
		}); err != nil {
			return fmt.Errorf("queue status changed event: %w", err)
		}
		return nil
	})
}
