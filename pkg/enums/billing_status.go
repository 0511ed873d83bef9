package enums

// BillingStatus is the outcome recorded on a storage billing ledger row.
type BillingStatus string

const (
	BillingStatusPaid   BillingStatus = "paid"
	BillingStatusFailed BillingStatus = "failed"
)

var validBillingStatuses = []BillingStatus{
	BillingStatusPaid,
	BillingStatusFailed,
}

// IsValid reports whether the value matches a known BillingStatus.
func (b BillingStatus) IsValid() bool {
	for _, candidate := range validBillingStatuses {
		if candidate == b {
			return true
		}
	}
	return false
}
