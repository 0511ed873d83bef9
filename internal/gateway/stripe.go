package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	pkgstripe "github.com/angelmondragon/goldvault-backend/pkg/stripe"
)

const (
	// MetadataCustomerID tags gateway objects with the vault customer id.
	MetadataCustomerID = "customer_id"
	// MetadataPeriod tags invoices with the billing period start.
	MetadataPeriod = "period"
	// MetadataHoldingID tags invoice items with the billed holding.
	MetadataHoldingID = "holding_id"

	defaultCallTimeout = 30 * time.Second
)

// stripeAPI is the subset of Stripe V1 calls the adapter needs.
type stripeAPI interface {
	SearchCustomers(ctx context.Context, params *stripe.CustomerSearchParams) ([]*stripe.Customer, error)
	CreateCustomer(ctx context.Context, params *stripe.CustomerCreateParams) (*stripe.Customer, error)
	CreateInvoice(ctx context.Context, params *stripe.InvoiceCreateParams) (*stripe.Invoice, error)
	RetrieveInvoice(ctx context.Context, id string, params *stripe.InvoiceRetrieveParams) (*stripe.Invoice, error)
	CreateInvoiceItem(ctx context.Context, params *stripe.InvoiceItemCreateParams) (*stripe.InvoiceItem, error)
	ListInvoiceItems(ctx context.Context, params *stripe.InvoiceItemListParams) ([]*stripe.InvoiceItem, error)
	FinalizeInvoice(ctx context.Context, id string, params *stripe.InvoiceFinalizeInvoiceParams) (*stripe.Invoice, error)
	PayInvoice(ctx context.Context, id string, params *stripe.InvoicePayParams) (*stripe.Invoice, error)
}

// clientAPI routes calls through a configured stripe.Client.
type clientAPI struct {
	sc *stripe.Client
}

func (a clientAPI) SearchCustomers(ctx context.Context, params *stripe.CustomerSearchParams) ([]*stripe.Customer, error) {
	var out []*stripe.Customer
	for c, err := range a.sc.V1Customers.Search(ctx, params) {
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (a clientAPI) CreateCustomer(ctx context.Context, params *stripe.CustomerCreateParams) (*stripe.Customer, error) {
	return a.sc.V1Customers.Create(ctx, params)
}

func (a clientAPI) CreateInvoice(ctx context.Context, params *stripe.InvoiceCreateParams) (*stripe.Invoice, error) {
	return a.sc.V1Invoices.Create(ctx, params)
}

func (a clientAPI) RetrieveInvoice(ctx context.Context, id string, params *stripe.InvoiceRetrieveParams) (*stripe.Invoice, error) {
	return a.sc.V1Invoices.Retrieve(ctx, id, params)
}

func (a clientAPI) CreateInvoiceItem(ctx context.Context, params *stripe.InvoiceItemCreateParams) (*stripe.InvoiceItem, error) {
	return a.sc.V1InvoiceItems.Create(ctx, params)
}

func (a clientAPI) ListInvoiceItems(ctx context.Context, params *stripe.InvoiceItemListParams) ([]*stripe.InvoiceItem, error) {
	var out []*stripe.InvoiceItem
	for item, err := range a.sc.V1InvoiceItems.List(ctx, params) {
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

func (a clientAPI) FinalizeInvoice(ctx context.Context, id string, params *stripe.InvoiceFinalizeInvoiceParams) (*stripe.Invoice, error) {
	return a.sc.V1Invoices.FinalizeInvoice(ctx, id, params)
}

func (a clientAPI) PayInvoice(ctx context.Context, id string, params *stripe.InvoicePayParams) (*stripe.Invoice, error) {
	return a.sc.V1Invoices.Pay(ctx, id, params)
}

// StripeOptions tunes the Stripe adapter.
type StripeOptions struct {
	CallTimeout time.Duration
}

// StripeGateway drives Stripe customers and invoices for storage billing.
type StripeGateway struct {
	api     stripeAPI
	timeout time.Duration
}

// NewStripeGateway wraps the configured Stripe client.
func NewStripeGateway(client *pkgstripe.Client, opts StripeOptions) (*StripeGateway, error) {
	if client == nil || client.API() == nil {
		return nil, errors.New("stripe client required")
	}
	return newStripeGateway(clientAPI{sc: client.API()}, opts), nil
}

func newStripeGateway(api stripeAPI, opts StripeOptions) *StripeGateway {
	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &StripeGateway{api: api, timeout: timeout}
}

// FindCustomer looks the vault customer up by its metadata tag.
func (g *StripeGateway) FindCustomer(ctx context.Context, customerID uuid.UUID) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.CustomerSearchParams{
		SearchParams: stripe.SearchParams{
			Query: fmt.Sprintf("metadata['%s']:'%s'", MetadataCustomerID, customerID.String()),
		},
	}
	params.Limit = stripe.Int64(1)
	found, err := g.api.SearchCustomers(ctx, params)
	if err != nil {
		return "", false, fmt.Errorf("stripe search customer: %w", err)
	}
	for _, c := range found {
		if c != nil && c.ID != "" && !c.Deleted {
			return c.ID, true, nil
		}
	}
	return "", false, nil
}

func (g *StripeGateway) CreateCustomer(ctx context.Context, input CustomerInput) (string, error) {
	if input.CustomerID == uuid.Nil {
		return "", errors.New("customer id required")
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.CustomerCreateParams{}
	if email := strings.TrimSpace(input.Email); email != "" {
		params.Email = stripe.String(email)
	}
	if name := strings.TrimSpace(input.Name); name != "" {
		params.Name = stripe.String(name)
	}
	params.AddMetadata(MetadataCustomerID, input.CustomerID.String())
	params.SetIdempotencyKey("gv-customer-" + input.CustomerID.String())

	created, err := g.api.CreateCustomer(ctx, params)
	if err != nil {
		return "", fmt.Errorf("stripe create customer: %w", err)
	}
	if created == nil || created.ID == "" {
		return "", errors.New("stripe create customer: empty response")
	}
	return created.ID, nil
}

// CreateInvoice opens an auto-advancing invoice that only carries items attached to it explicitly.
func (g *StripeGateway) CreateInvoice(ctx context.Context, input InvoiceInput) (*Invoice, error) {
	if input.GatewayCustomerID == "" {
		return nil, errors.New("gateway customer id required")
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	period := input.PeriodStart.UTC()
	params := &stripe.InvoiceCreateParams{
		Customer:                    stripe.String(input.GatewayCustomerID),
		AutoAdvance:                 stripe.Bool(true),
		CollectionMethod:            stripe.String(string(stripe.InvoiceCollectionMethodChargeAutomatically)),
		PendingInvoiceItemsBehavior: stripe.String("exclude"),
	}
	if input.Description != "" {
		params.Description = stripe.String(input.Description)
	}
	params.AddMetadata(MetadataCustomerID, input.CustomerID.String())
	params.AddMetadata(MetadataPeriod, period.Format(time.RFC3339))
	params.SetIdempotencyKey(fmt.Sprintf("gv-invoice-%s-%s", input.CustomerID, period.Format("2006-01")))

	inv, err := g.api.CreateInvoice(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("stripe create invoice: %w", err)
	}
	return toInvoice(inv)
}

func (g *StripeGateway) GetInvoice(ctx context.Context, invoiceID string) (*Invoice, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	inv, err := g.api.RetrieveInvoice(ctx, invoiceID, &stripe.InvoiceRetrieveParams{})
	if err != nil {
		return nil, fmt.Errorf("stripe get invoice: %w", err)
	}
	return toInvoice(inv)
}

func (g *StripeGateway) AddLineItem(ctx context.Context, input LineItemInput) error {
	if input.InvoiceID == "" || input.GatewayCustomerID == "" {
		return errors.New("invoice and gateway customer required")
	}
	if input.Currency == "" {
		return errors.New("currency required")
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.InvoiceItemCreateParams{
		Customer: stripe.String(input.GatewayCustomerID),
		Invoice:  stripe.String(input.InvoiceID),
		Amount:   stripe.Int64(input.AmountMinor),
		Currency: stripe.String(strings.ToLower(input.Currency)),
	}
	if input.Description != "" {
		params.Description = stripe.String(input.Description)
	}
	params.AddMetadata(MetadataHoldingID, input.HoldingID.String())
	params.SetIdempotencyKey(fmt.Sprintf("gv-item-%s-%s", input.InvoiceID, input.HoldingID))

	if _, err := g.api.CreateInvoiceItem(ctx, params); err != nil {
		return fmt.Errorf("stripe add invoice item: %w", err)
	}
	return nil
}

// AttachedHoldings reads the holding tag off every item on the invoice.
// Items without a parseable tag are ignored.
func (g *StripeGateway) AttachedHoldings(ctx context.Context, invoiceID string) (map[uuid.UUID]bool, error) {
	if invoiceID == "" {
		return nil, errors.New("invoice id required")
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.InvoiceItemListParams{Invoice: stripe.String(invoiceID)}
	params.Limit = stripe.Int64(100)
	items, err := g.api.ListInvoiceItems(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("stripe list invoice items: %w", err)
	}
	attached := make(map[uuid.UUID]bool, len(items))
	for _, item := range items {
		if item == nil || item.Deleted {
			continue
		}
		id, err := uuid.Parse(item.Metadata[MetadataHoldingID])
		if err != nil {
			continue
		}
		attached[id] = true
	}
	return attached, nil
}

func (g *StripeGateway) FinalizeInvoice(ctx context.Context, invoiceID string) (*Invoice, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	inv, err := g.api.FinalizeInvoice(ctx, invoiceID, &stripe.InvoiceFinalizeInvoiceParams{})
	if err != nil {
		return nil, fmt.Errorf("stripe finalize invoice: %w", err)
	}
	return toInvoice(inv)
}

func (g *StripeGateway) PayInvoice(ctx context.Context, invoiceID string) (*Invoice, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	inv, err := g.api.PayInvoice(ctx, invoiceID, &stripe.InvoicePayParams{})
	if err != nil {
		return nil, fmt.Errorf("stripe pay invoice: %w", err)
	}
	return toInvoice(inv)
}

func toInvoice(inv *stripe.Invoice) (*Invoice, error) {
	if inv == nil || inv.ID == "" {
		return nil, errors.New("stripe returned an empty invoice")
	}
	out := &Invoice{ID: inv.ID, Status: InvoiceStatus(inv.Status)}
	if inv.StatusTransitions != nil && inv.StatusTransitions.PaidAt > 0 {
		paidAt := time.Unix(inv.StatusTransitions.PaidAt, 0).UTC()
		out.PaidAt = &paidAt
	}
	return out, nil
}
