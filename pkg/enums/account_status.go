package enums

// AccountStatus captures a customer's billing standing.
type AccountStatus string

const (
	AccountStatusActive      AccountStatus = "active"
	AccountStatusGracePeriod AccountStatus = "grace_period"
	AccountStatusSuspended   AccountStatus = "suspended"
)

var validAccountStatuses = []AccountStatus{
	AccountStatusActive,
	AccountStatusGracePeriod,
	AccountStatusSuspended,
}

// String implements fmt.Stringer.
func (a AccountStatus) String() string {
	return string(a)
}

// IsValid reports whether the value matches a known AccountStatus.
func (a AccountStatus) IsValid() bool {
	for _, candidate := range validAccountStatuses {
		if candidate == a {
			return true
		}
	}
	return false
}
