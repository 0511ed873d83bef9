package storagebilling

import (
	"fmt"
	"time"
)

// Period is one calendar month in UTC, inclusive at both ends.
type Period struct {
	Start time.Time
	End   time.Time
}

// PeriodFor returns the calendar month containing now. End is the last whole
// second of the month.
func PeriodFor(now time.Time) Period {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0).Add(-time.Second)
	return Period{Start: start, End: end}
}

// Label renders the period as "January 2026".
func (p Period) Label() string {
	return p.Start.Format("January 2006")
}

// MonthName renders the period's month as "January".
func (p Period) MonthName() string {
	return p.Start.Month().String()
}

// InvoiceDescription is the gateway invoice description for the period.
func (p Period) InvoiceDescription() string {
	return "Vault storage billing: " + p.Label()
}

// LineDescription is the gateway line-item description for one holding.
func (p Period) LineDescription(vaultRef string) string {
	return fmt.Sprintf("Storage: %s (%s)", vaultRef, p.MonthName())
}
