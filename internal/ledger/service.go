package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/goldvault-backend/pkg/db/models"
	"github.com/angelmondragon/goldvault-backend/pkg/enums"
)

// Service defines operations that record billed storage fees.
type Service interface {
	RecordInvoice(ctx context.Context, input RecordInvoiceInput) ([]models.StorageBilling, error)
}

type service struct {
	repo Repository
}

// InvoiceLine is one billed holding on a customer's storage invoice.
type InvoiceLine struct {
	HoldingID uuid.UUID       `json:"holding_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// RecordInvoiceInput captures the immutable data the ledger rows of one invoice require.
type RecordInvoiceInput struct {
	CustomerID  uuid.UUID     `json:"customer_id"`
	InvoiceID   string        `json:"invoice_id"`
	PeriodStart time.Time     `json:"period_start"`
	PeriodEnd   time.Time     `json:"period_end"`
	Paid        bool          `json:"paid"`
	PaidAt      *time.Time    `json:"paid_at,omitempty"`
	Lines       []InvoiceLine `json:"lines"`
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) RecordInvoice(ctx context.Context, input RecordInvoiceInput) ([]models.StorageBilling, error) {
	rows, err := BuildRows(input)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateBatch(ctx, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// BuildRows turns an invoice outcome into one ledger row per holding.
// paid_at is only carried when the invoice was paid.
func BuildRows(input RecordInvoiceInput) ([]models.StorageBilling, error) {
	if input.CustomerID == uuid.Nil {
		return nil, fmt.Errorf("customer id is required")
	}
	if strings.TrimSpace(input.InvoiceID) == "" {
		return nil, fmt.Errorf("invoice id is required")
	}
	if input.PeriodStart.IsZero() || input.PeriodEnd.Before(input.PeriodStart) {
		return nil, fmt.Errorf("invalid billing period")
	}
	if len(input.Lines) == 0 {
		return nil, fmt.Errorf("at least one invoice line is required")
	}

	status := enums.BillingStatusFailed
	var paidAt *time.Time
	if input.Paid {
		status = enums.BillingStatusPaid
		if input.PaidAt == nil {
			return nil, fmt.Errorf("paid invoices require paid_at")
		}
		at := input.PaidAt.UTC()
		paidAt = &at
	}

	rows := make([]models.StorageBilling, 0, len(input.Lines))
	for _, line := range input.Lines {
		if line.HoldingID == uuid.Nil {
			return nil, fmt.Errorf("holding id is required")
		}
		if line.Amount.IsNegative() {
			return nil, fmt.Errorf("holding %s has a negative amount", line.HoldingID)
		}
		rows = append(rows, models.StorageBilling{
			ID:                 uuid.New(),
			CustomerID:         input.CustomerID,
			HoldingID:          line.HoldingID,
			Amount:             line.Amount,
			Status:             status,
			StripeInvoiceID:    input.InvoiceID,
			BillingPeriodStart: input.PeriodStart.UTC(),
			BillingPeriodEnd:   input.PeriodEnd.UTC(),
			PaidAt:             paidAt,
		})
	}
	return rows, nil
}
