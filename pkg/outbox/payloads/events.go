package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/goldvault-backend/pkg/enums"
)

// StorageInvoiceRecordedEvent is emitted once a customer's monthly storage invoice is in the ledger.
type StorageInvoiceRecordedEvent struct {
	CustomerID  uuid.UUID       `json:"customer_id"`
	InvoiceID   string          `json:"invoice_id"`
	PeriodStart time.Time       `json:"period_start"`
	PeriodEnd   time.Time       `json:"period_end"`
	TotalFee    decimal.Decimal `json:"total_fee"`
	Currency    string          `json:"currency"`
	Paid        bool            `json:"paid"`
	PaidAt      *time.Time      `json:"paid_at,omitempty"`
	HoldingIDs  []uuid.UUID     `json:"holding_ids"`
}

// AccountStatusChangedEvent is emitted when a billing run moves a customer between standings.
type AccountStatusChangedEvent struct {
	CustomerID      uuid.UUID           `json:"customer_id"`
	From            enums.AccountStatus `json:"from"`
	To              enums.AccountStatus `json:"to"`
	GracePeriodEnds *time.Time          `json:"grace_period_ends,omitempty"`
	OverdueAmount   decimal.Decimal     `json:"overdue_amount"`
}

// BalanceClearedEvent is emitted when an operator manually resets a customer to active.
type BalanceClearedEvent struct {
	CustomerID      uuid.UUID           `json:"customer_id"`
	PreviousStatus  enums.AccountStatus `json:"previous_status"`
	PreviousOverdue decimal.Decimal     `json:"previous_overdue"`
}
