package enums

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateCustomer       OutboxAggregateType = "customer"
	AggregateStorageInvoice OutboxAggregateType = "storage_invoice"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateCustomer,
	AggregateStorageInvoice,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// OutboxEventType maps to the event_type column of outbox_events.
type OutboxEventType string

const (
	EventStorageInvoiceRecorded OutboxEventType = "storage_billing.invoice_recorded"
	EventAccountStatusChanged   OutboxEventType = "customer.account_status_changed"
	EventBalanceCleared         OutboxEventType = "customer.balance_cleared"
)

var validOutboxEventTypes = []OutboxEventType{
	EventStorageInvoiceRecorded,
	EventAccountStatusChanged,
	EventBalanceCleared,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}
