package storagebilling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/goldvault-backend/internal/accountstatus"
	"github.com/angelmondragon/goldvault-backend/internal/gateway"
	"github.com/angelmondragon/goldvault-backend/pkg/db/models"
	"github.com/angelmondragon/goldvault-backend/pkg/enums"
)

// workflow drives one customer through the gateway and records the result.
// Each completed gateway step advances the attempt so a later run resumes
// instead of starting over.
type workflow struct {
	svc     *service
	runID   string
	runAt   time.Time
	period  Period
	batch   CustomerBatch
	attempt *models.StorageBillingAttempt
}

func (w *workflow) run(ctx context.Context) error {
	gatewayRef, err := w.ensureGatewayCustomer(ctx)
	if err != nil {
		return fmt.Errorf("ensure gateway customer: %w", err)
	}
	if err := w.advance(ctx, enums.BillingAttemptGatewayCustomerEnsured, nil); err != nil {
		return err
	}

	inv, resumed, err := w.openInvoice(ctx, gatewayRef)
	if err != nil {
		return err
	}

	if inv.Status == gateway.InvoiceStatusDraft {
		if err := w.addLineItems(ctx, gatewayRef, inv.ID, resumed); err != nil {
			return err
		}
		inv, err = w.svc.gateway.FinalizeInvoice(ctx, inv.ID)
		if err != nil {
			return fmt.Errorf("finalize invoice: %w", err)
		}
		if err := w.advance(ctx, enums.BillingAttemptInvoiceFinalized, nil); err != nil {
			return err
		}
	}

	paid, paidAt := w.collect(ctx, inv)
	standing := accountstatus.Transition(
		w.batch.AccountStatus(),
		paid,
		w.batch.TotalFee(),
		w.runAt,
		w.svc.cfg.GracePeriod(),
	)

	if err := w.svc.recorder.Record(ctx, Outcome{
		RunID:     w.runID,
		AttemptID: w.attempt.ID,
		Batch:     w.batch,
		Period:    w.period,
		InvoiceID: inv.ID,
		Paid:      paid,
		PaidAt:    paidAt,
		Standing:  standing,
		Currency:  w.svc.cfg.Currency,
	}); err != nil {
		return fmt.Errorf("record billing outcome: %w", err)
	}

	logg := w.svc.logg
	logg.Info(logg.WithFields(ctx, map[string]any{
		"invoice_id":     inv.ID,
		"paid":           paid,
		"total_fee":      w.batch.TotalFee().StringFixed(2),
		"holdings":       len(w.batch.holdings),
		"account_status": standing.Status,
	}), "customer billed")
	return nil
}

// ensureGatewayCustomer returns the stored reference, else an existing gateway
// customer tagged with our id, else a new one. The reference is persisted
// before any invoice exists.
func (w *workflow) ensureGatewayCustomer(ctx context.Context) (string, error) {
	if ref := w.batch.GatewayCustomerID(); ref != "" {
		return ref, nil
	}

	customerID := w.batch.CustomerID()
	ref, found, err := w.svc.gateway.FindCustomer(ctx, customerID)
	if err != nil {
		return "", err
	}
	if !found {
		ref, err = w.svc.gateway.CreateCustomer(ctx, gateway.CustomerInput{
			CustomerID: customerID,
			Email:      w.batch.Email(),
			Name:       w.batch.FullName(),
		})
		if err != nil {
			return "", err
		}
	}
	if err := w.svc.customers.SetStripeCustomerID(ctx, customerID, ref); err != nil {
		return "", fmt.Errorf("persist gateway reference: %w", err)
	}
	return ref, nil
}

// openInvoice reports resumed when the invoice came from an earlier attempt
// and may already carry some of the line items.
func (w *workflow) openInvoice(ctx context.Context, gatewayRef string) (*gateway.Invoice, bool, error) {
	if w.attempt.StripeInvoiceID != nil && *w.attempt.StripeInvoiceID != "" {
		inv, err := w.svc.gateway.GetInvoice(ctx, *w.attempt.StripeInvoiceID)
		if err != nil {
			return nil, false, fmt.Errorf("load invoice: %w", err)
		}
		return inv, true, nil
	}

	inv, err := w.svc.gateway.CreateInvoice(ctx, gateway.InvoiceInput{
		CustomerID:        w.batch.CustomerID(),
		GatewayCustomerID: gatewayRef,
		PeriodStart:       w.period.Start,
		Description:       w.period.InvoiceDescription(),
	})
	if err != nil {
		return nil, false, fmt.Errorf("create invoice: %w", err)
	}
	invoiceID := inv.ID
	if err := w.advance(ctx, enums.BillingAttemptInvoiceCreated, &invoiceID); err != nil {
		return nil, false, err
	}
	return inv, false, nil
}

// addLineItems attaches one item per holding. Holdings already on a resumed
// invoice are skipped.
func (w *workflow) addLineItems(ctx context.Context, gatewayRef, invoiceID string, resumed bool) error {
	attached := map[uuid.UUID]bool{}
	if resumed {
		var err error
		attached, err = w.svc.gateway.AttachedHoldings(ctx, invoiceID)
		if err != nil {
			return fmt.Errorf("list invoice line items: %w", err)
		}
	}
	for _, h := range w.batch.holdings {
		if attached[h.ID] {
			continue
		}
		if err := w.svc.gateway.AddLineItem(ctx, gateway.LineItemInput{
			GatewayCustomerID: gatewayRef,
			InvoiceID:         invoiceID,
			HoldingID:         h.ID,
			AmountMinor:       gateway.ToMinorUnits(h.StorageFee),
			Currency:          w.svc.cfg.Currency,
			Description:       w.period.LineDescription(h.VaultRef),
		}); err != nil {
			return fmt.Errorf("add line item for %s: %w", h.VaultRef, err)
		}
	}
	return nil
}

// collect attempts payment on open invoices. A failed payment is an outcome,
// not an error.
func (w *workflow) collect(ctx context.Context, inv *gateway.Invoice) (bool, *time.Time) {
	switch inv.Status {
	case gateway.InvoiceStatusPaid:
		return true, w.paidAt(inv)
	case gateway.InvoiceStatusOpen:
	default:
		return false, nil
	}

	paidInv, err := w.svc.gateway.PayInvoice(ctx, inv.ID)
	if err != nil {
		logg := w.svc.logg
		logg.Warn(logg.WithFields(ctx, map[string]any{
			"invoice_id": inv.ID,
			"error":      err.Error(),
		}), "storage invoice payment failed")
		return false, nil
	}
	if paidInv.Status != gateway.InvoiceStatusPaid {
		return false, nil
	}
	return true, w.paidAt(paidInv)
}

func (w *workflow) paidAt(inv *gateway.Invoice) *time.Time {
	if inv.PaidAt != nil {
		at := inv.PaidAt.UTC()
		return &at
	}
	at := w.svc.now().UTC()
	return &at
}

func (w *workflow) advance(ctx context.Context, stage enums.BillingAttemptStage, invoiceID *string) error {
	if w.attempt.Stage.Reached(stage) && invoiceID == nil {
		return nil
	}
	if err := w.svc.attempts.Advance(ctx, w.attempt.ID, stage, invoiceID); err != nil {
		return fmt.Errorf("advance billing attempt to %s: %w", stage, err)
	}
	w.attempt.Stage = stage
	if invoiceID != nil {
		w.attempt.StripeInvoiceID = invoiceID
	}
	return nil
}
