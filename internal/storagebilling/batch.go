package storagebilling

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/goldvault-backend/internal/holdings"
	"github.com/angelmondragon/goldvault-backend/pkg/enums"
)

// BatchHolding is one holding billed inside a CustomerBatch.
type BatchHolding struct {
	ID         uuid.UUID
	VaultRef   string
	StorageFee decimal.Decimal
}

// CustomerBatch groups a customer's active holdings for one run. Batches are
// built once by GroupByCustomer and only read afterwards.
type CustomerBatch struct {
	customerID    uuid.UUID
	fullName      string
	email         string
	gatewayRef    string
	accountStatus enums.AccountStatus
	holdings      []BatchHolding
	totalFee      decimal.Decimal
}

func (b CustomerBatch) CustomerID() uuid.UUID { return b.customerID }
func (b CustomerBatch) FullName() string      { return b.fullName }
func (b CustomerBatch) Email() string         { return b.email }

// GatewayCustomerID is empty when the customer has no gateway reference yet.
func (b CustomerBatch) GatewayCustomerID() string { return b.gatewayRef }

// AccountStatus is the customer's status before this run.
func (b CustomerBatch) AccountStatus() enums.AccountStatus { return b.accountStatus }

func (b CustomerBatch) TotalFee() decimal.Decimal { return b.totalFee }

// Holdings returns a copy of the batch's holdings.
func (b CustomerBatch) Holdings() []BatchHolding {
	out := make([]BatchHolding, len(b.holdings))
	copy(out, b.holdings)
	return out
}

// HoldingIDs lists the batch's holding ids in billing order.
func (b CustomerBatch) HoldingIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(b.holdings))
	for _, h := range b.holdings {
		ids = append(ids, h.ID)
	}
	return ids
}

// GroupByCustomer aggregates billable rows into per-customer batches sorted by
// customer id. Holdings keep their input order within a batch.
func GroupByCustomer(rows []holdings.BillableHolding) []CustomerBatch {
	index := make(map[uuid.UUID]int)
	var batches []CustomerBatch

	for _, row := range rows {
		i, ok := index[row.CustomerID]
		if !ok {
			ref := ""
			if row.StripeCustomerID != nil {
				ref = strings.TrimSpace(*row.StripeCustomerID)
			}
			batches = append(batches, CustomerBatch{
				customerID:    row.CustomerID,
				fullName:      row.FullName,
				email:         row.Email,
				gatewayRef:    ref,
				accountStatus: row.AccountStatus,
				totalFee:      decimal.Zero,
			})
			i = len(batches) - 1
			index[row.CustomerID] = i
		}
		batches[i].holdings = append(batches[i].holdings, BatchHolding{
			ID:         row.HoldingID,
			VaultRef:   row.VaultRef,
			StorageFee: row.StorageFee,
		})
		batches[i].totalFee = batches[i].totalFee.Add(row.StorageFee)
	}

	sort.Slice(batches, func(a, b int) bool {
		return batches[a].customerID.String() < batches[b].customerID.String()
	})
	return batches
}
