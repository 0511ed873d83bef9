package enums

import "fmt"

// HoldingStatus tracks whether a vault holding is still in custody.
type HoldingStatus string

const (
	HoldingStatusActive      HoldingStatus = "active"
	HoldingStatusReleased    HoldingStatus = "released"
	HoldingStatusSold        HoldingStatus = "sold"
	HoldingStatusTransferred HoldingStatus = "transferred"
)

var validHoldingStatuses = []HoldingStatus{
	HoldingStatusActive,
	HoldingStatusReleased,
	HoldingStatusSold,
	HoldingStatusTransferred,
}

// String implements fmt.Stringer.
func (h HoldingStatus) String() string {
	return string(h)
}

// IsValid reports whether the value matches a known HoldingStatus.
func (h HoldingStatus) IsValid() bool {
	for _, candidate := range validHoldingStatuses {
		if candidate == h {
			return true
		}
	}
	return false
}

// ParseHoldingStatus converts raw input into a HoldingStatus.
func ParseHoldingStatus(value string) (HoldingStatus, error) {
	for _, candidate := range validHoldingStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid holding status %q", value)
}
