package enums

// BillingAttemptStage marks the last completed step of a customer's billing run for a period.
type BillingAttemptStage string

const (
	BillingAttemptStarted                BillingAttemptStage = "started"
	BillingAttemptGatewayCustomerEnsured BillingAttemptStage = "gateway_customer_ensured"
	BillingAttemptInvoiceCreated         BillingAttemptStage = "invoice_created"
	BillingAttemptInvoiceFinalized       BillingAttemptStage = "invoice_finalized"
	BillingAttemptRecorded               BillingAttemptStage = "recorded"
)

// stages are listed in workflow order; Reached relies on it.
var validBillingAttemptStages = []BillingAttemptStage{
	BillingAttemptStarted,
	BillingAttemptGatewayCustomerEnsured,
	BillingAttemptInvoiceCreated,
	BillingAttemptInvoiceFinalized,
	BillingAttemptRecorded,
}

// IsValid reports whether the value matches a known BillingAttemptStage.
func (s BillingAttemptStage) IsValid() bool {
	return s.rank() >= 0
}

// Reached reports whether s is at or beyond target in the workflow.
func (s BillingAttemptStage) Reached(target BillingAttemptStage) bool {
	rank := s.rank()
	return rank >= 0 && rank >= target.rank()
}

func (s BillingAttemptStage) rank() int {
	for i, candidate := range validBillingAttemptStages {
		if candidate == s {
			return i
		}
	}
	return -1
}
