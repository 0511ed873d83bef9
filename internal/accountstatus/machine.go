// Package accountstatus derives a customer's billing standing from payment outcomes.
package accountstatus

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/goldvault-backend/pkg/enums"
)

// Standing is the full set of billing fields kept on a customer.
type Standing struct {
	Status          enums.AccountStatus
	GracePeriodEnds *time.Time
	OverdueAmount   decimal.Decimal
}

// Active is the standing every successful payment resets to.
func Active() Standing {
	return Standing{Status: enums.AccountStatusActive, OverdueAmount: decimal.Zero}
}

// Normalize maps unknown stored statuses to active.
func Normalize(status enums.AccountStatus) enums.AccountStatus {
	if status.IsValid() {
		return status
	}
	return enums.AccountStatusActive
}

// Transition applies one billing outcome to the customer's pre-run status.
//
// A paid run always resets to active. An unpaid run escalates active to
// grace_period (ending now+grace) and anything else to suspended; the overdue
// amount is always the fee billed this run.
func Transition(current enums.AccountStatus, paid bool, totalFee decimal.Decimal, now time.Time, grace time.Duration) Standing {
	if paid {
		return Active()
	}

	switch Normalize(current) {
	case enums.AccountStatusActive:
		ends := now.Add(grace)
		return Standing{
			Status:          enums.AccountStatusGracePeriod,
			GracePeriodEnds: &ends,
			OverdueAmount:   totalFee,
		}
	default:
		return Standing{
			Status:        enums.AccountStatusSuspended,
			OverdueAmount: totalFee,
		}
	}
}

// Equal reports whether two standings carry the same values.
func (s Standing) Equal(other Standing) bool {
	if s.Status != other.Status || !s.OverdueAmount.Equal(other.OverdueAmount) {
		return false
	}
	switch {
	case s.GracePeriodEnds == nil && other.GracePeriodEnds == nil:
		return true
	case s.GracePeriodEnds == nil || other.GracePeriodEnds == nil:
		return false
	default:
		return s.GracePeriodEnds.Equal(*other.GracePeriodEnds)
	}
}
