package storagebilling

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/goldvault-backend/internal/gateway"
	"github.com/angelmondragon/goldvault-backend/internal/holdings"
	"github.com/angelmondragon/goldvault-backend/pkg/db/models"
	"github.com/angelmondragon/goldvault-backend/pkg/enums"
)

type fakeHoldings struct {
	mu        sync.Mutex
	rows      []holdings.BillableHolding
	listErr   error
	valuation []holdings.ValuationInput
	valueErr  map[uuid.UUID]error
	values    map[uuid.UUID]decimal.Decimal
}

func (f *fakeHoldings) ListActiveForBilling(ctx context.Context) ([]holdings.BillableHolding, error) {
	return f.rows, f.listErr
}

func (f *fakeHoldings) ListActiveForValuation(ctx context.Context) ([]holdings.ValuationInput, error) {
	return f.valuation, nil
}

func (f *fakeHoldings) UpdateCurrentValue(ctx context.Context, holdingID uuid.UUID, value decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.valueErr[holdingID]; err != nil {
		return err
	}
	if f.values == nil {
		f.values = map[uuid.UUID]decimal.Decimal{}
	}
	f.values[holdingID] = value
	return nil
}

type fakeCustomerRefs struct {
	mu   sync.Mutex
	refs map[uuid.UUID]string
	err  error
}

func (f *fakeCustomerRefs) SetStripeCustomerID(ctx context.Context, id uuid.UUID, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.refs == nil {
		f.refs = map[uuid.UUID]string{}
	}
	f.refs[id] = ref
	return nil
}

type fakeAttempts struct {
	mu       sync.Mutex
	byKey    map[string]*models.StorageBillingAttempt
	beginErr error
	errors   map[uuid.UUID]string
}

func attemptKey(customerID uuid.UUID, period time.Time) string {
	return customerID.String() + "|" + period.UTC().Format(time.RFC3339)
}

func (f *fakeAttempts) seed(customerID uuid.UUID, period time.Time, stage enums.BillingAttemptStage, invoiceID *string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.byKey == nil {
		f.byKey = map[string]*models.StorageBillingAttempt{}
	}
	f.byKey[attemptKey(customerID, period)] = &models.StorageBillingAttempt{
		ID:                 uuid.New(),
		CustomerID:         customerID,
		BillingPeriodStart: period,
		Stage:              stage,
		StripeInvoiceID:    invoiceID,
	}
}

func (f *fakeAttempts) Begin(ctx context.Context, customerID uuid.UUID, period time.Time) (*models.StorageBillingAttempt, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.byKey == nil {
		f.byKey = map[string]*models.StorageBillingAttempt{}
	}
	key := attemptKey(customerID, period)
	if existing, ok := f.byKey[key]; ok {
		cp := *existing
		return &cp, nil
	}
	attempt := &models.StorageBillingAttempt{
		ID:                 uuid.New(),
		CustomerID:         customerID,
		BillingPeriodStart: period,
		Stage:              enums.BillingAttemptStarted,
	}
	f.byKey[key] = attempt
	cp := *attempt
	return &cp, nil
}

func (f *fakeAttempts) find(id uuid.UUID) *models.StorageBillingAttempt {
	for _, a := range f.byKey {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func (f *fakeAttempts) Advance(ctx context.Context, id uuid.UUID, stage enums.BillingAttemptStage, invoiceID *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.find(id)
	if a == nil {
		return errors.New("attempt not found")
	}
	a.Stage = stage
	if invoiceID != nil {
		v := *invoiceID
		a.StripeInvoiceID = &v
	}
	return nil
}

func (f *fakeAttempts) RecordError(ctx context.Context, id uuid.UUID, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errors == nil {
		f.errors = map[uuid.UUID]string{}
	}
	f.errors[id] = message
	return nil
}

type fakePrices struct {
	point *models.GoldPricePoint
	err   error
	calls int
}

func (f *fakePrices) Latest(ctx context.Context) (*models.GoldPricePoint, error) {
	f.calls++
	return f.point, f.err
}

type lineItem struct {
	invoiceID   string
	holdingID   uuid.UUID
	amountMinor int64
	currency    string
	description string
}

// fakeGateway is an in-memory payment gateway. Invoices start as drafts, turn
// open on finalize and paid on pay unless the customer is set to decline.
type fakeGateway struct {
	mu sync.Mutex

	customersByTag map[uuid.UUID]string
	created        []gateway.CustomerInput
	invoices       map[string]*gateway.Invoice
	invoiceOwner   map[string]uuid.UUID
	invoiceInputs  []gateway.InvoiceInput
	items          []lineItem
	finalized      []string
	payCalls       []string
	getCalls       []string
	listCalls      []string

	decline     map[uuid.UUID]bool
	failFinal   map[uuid.UUID]error
	panicOn     map[uuid.UUID]bool
	paidAt      *time.Time
	invoiceSeq  int
	customerSeq int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		customersByTag: map[uuid.UUID]string{},
		invoices:       map[string]*gateway.Invoice{},
		invoiceOwner:   map[string]uuid.UUID{},
		decline:        map[uuid.UUID]bool{},
		failFinal:      map[uuid.UUID]error{},
		panicOn:        map[uuid.UUID]bool{},
	}
}

func (g *fakeGateway) FindCustomer(ctx context.Context, customerID uuid.UUID) (string, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.panicOn[customerID] {
		panic("gateway exploded")
	}
	ref, ok := g.customersByTag[customerID]
	return ref, ok, nil
}

func (g *fakeGateway) CreateCustomer(ctx context.Context, input gateway.CustomerInput) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.customerSeq++
	ref := fmt.Sprintf("cus_%d", g.customerSeq)
	g.customersByTag[input.CustomerID] = ref
	g.created = append(g.created, input)
	return ref, nil
}

func (g *fakeGateway) CreateInvoice(ctx context.Context, input gateway.InvoiceInput) (*gateway.Invoice, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.invoiceSeq++
	inv := &gateway.Invoice{ID: fmt.Sprintf("in_%d", g.invoiceSeq), Status: gateway.InvoiceStatusDraft}
	g.invoices[inv.ID] = inv
	g.invoiceOwner[inv.ID] = input.CustomerID
	g.invoiceInputs = append(g.invoiceInputs, input)
	cp := *inv
	return &cp, nil
}

func (g *fakeGateway) GetInvoice(ctx context.Context, invoiceID string) (*gateway.Invoice, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.getCalls = append(g.getCalls, invoiceID)
	inv, ok := g.invoices[invoiceID]
	if !ok {
		return nil, errors.New("no such invoice")
	}
	cp := *inv
	return &cp, nil
}

func (g *fakeGateway) AddLineItem(ctx context.Context, input gateway.LineItemInput) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.items = append(g.items, lineItem{
		invoiceID:   input.InvoiceID,
		holdingID:   input.HoldingID,
		amountMinor: input.AmountMinor,
		currency:    input.Currency,
		description: input.Description,
	})
	return nil
}

func (g *fakeGateway) AttachedHoldings(ctx context.Context, invoiceID string) (map[uuid.UUID]bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listCalls = append(g.listCalls, invoiceID)
	out := map[uuid.UUID]bool{}
	for _, it := range g.items {
		if it.invoiceID == invoiceID {
			out[it.holdingID] = true
		}
	}
	return out, nil
}

func (g *fakeGateway) FinalizeInvoice(ctx context.Context, invoiceID string) (*gateway.Invoice, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.failFinal[g.invoiceOwner[invoiceID]]; err != nil {
		return nil, err
	}
	inv := g.invoices[invoiceID]
	inv.Status = gateway.InvoiceStatusOpen
	g.finalized = append(g.finalized, invoiceID)
	cp := *inv
	return &cp, nil
}

func (g *fakeGateway) PayInvoice(ctx context.Context, invoiceID string) (*gateway.Invoice, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payCalls = append(g.payCalls, invoiceID)
	if g.decline[g.invoiceOwner[invoiceID]] {
		return nil, errors.New("card_declined")
	}
	inv := g.invoices[invoiceID]
	inv.Status = gateway.InvoiceStatusPaid
	inv.PaidAt = g.paidAt
	cp := *inv
	return &cp, nil
}

func (g *fakeGateway) itemsFor(invoiceID string) []lineItem {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []lineItem
	for _, it := range g.items {
		if it.invoiceID == invoiceID {
			out = append(out, it)
		}
	}
	return out
}

type fakeRecorder struct {
	mu       sync.Mutex
	outcomes []Outcome
	err      error
	attempts *fakeAttempts
}

func (f *fakeRecorder) Record(ctx context.Context, out Outcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.outcomes = append(f.outcomes, out)
	if f.attempts != nil {
		invoiceID := out.InvoiceID
		return f.attempts.Advance(ctx, out.AttemptID, enums.BillingAttemptRecorded, &invoiceID)
	}
	return nil
}

func (f *fakeRecorder) byCustomer(id uuid.UUID) *Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.outcomes {
		if f.outcomes[i].Batch.CustomerID() == id {
			return &f.outcomes[i]
		}
	}
	return nil
}
