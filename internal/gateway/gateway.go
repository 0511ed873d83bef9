// Package gateway is the payment gateway boundary used by storage billing.
package gateway

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceStatus mirrors the gateway's invoice lifecycle.
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "draft"
	InvoiceStatusOpen          InvoiceStatus = "open"
	InvoiceStatusPaid          InvoiceStatus = "paid"
	InvoiceStatusUncollectible InvoiceStatus = "uncollectible"
	InvoiceStatusVoid          InvoiceStatus = "void"
)

// Invoice is the gateway's view of an invoice after a call.
type Invoice struct {
	ID     string
	Status InvoiceStatus
	PaidAt *time.Time
}

// CustomerInput identifies the vault customer a gateway customer is created for.
type CustomerInput struct {
	CustomerID uuid.UUID
	Email      string
	Name       string
}

// InvoiceInput opens a charge-automatically invoice for one billing period.
type InvoiceInput struct {
	CustomerID        uuid.UUID
	GatewayCustomerID string
	PeriodStart       time.Time
	Description       string
}

// LineItemInput attaches one holding's fee to an open invoice.
type LineItemInput struct {
	GatewayCustomerID string
	InvoiceID         string
	HoldingID         uuid.UUID
	AmountMinor       int64
	Currency          string
	Description       string
}

// Gateway is the set of payment operations the billing workflow drives.
type Gateway interface {
	FindCustomer(ctx context.Context, customerID uuid.UUID) (string, bool, error)
	CreateCustomer(ctx context.Context, input CustomerInput) (string, error)
	CreateInvoice(ctx context.Context, input InvoiceInput) (*Invoice, error)
	GetInvoice(ctx context.Context, invoiceID string) (*Invoice, error)
	AddLineItem(ctx context.Context, input LineItemInput) error
	// AttachedHoldings returns the holdings that already have a line item on the invoice.
	AttachedHoldings(ctx context.Context, invoiceID string) (map[uuid.UUID]bool, error)
	FinalizeInvoice(ctx context.Context, invoiceID string) (*Invoice, error)
	PayInvoice(ctx context.Context, invoiceID string) (*Invoice, error)
}

var hundred = decimal.NewFromInt(100)

// ToMinorUnits converts a major-unit amount into integer minor units,
// rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}
