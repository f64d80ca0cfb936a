package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/masjid/backend/internal/domain/shared/valueobject"
)

// BillingFrequency represents how often a member is billed
type BillingFrequency string

const (
	FrequencyMonthly    BillingFrequency = "MONTHLY"
	FrequencyQuarterly  BillingFrequency = "QUARTERLY"
	FrequencySemiAnnual BillingFrequency = "SEMI_ANNUAL"
	FrequencyYearly     BillingFrequency = "YEARLY"
)

// IsValid checks if the frequency is a valid BillingFrequency
func (f BillingFrequency) IsValid() bool {
	switch f {
	case FrequencyMonthly, FrequencyQuarterly, FrequencySemiAnnual, FrequencyYearly:
		return true
	}
	return false
}

// String returns the string representation of BillingFrequency
func (f BillingFrequency) String() string {
	return string(f)
}

// Months returns the number of calendar months in one billing cycle
func (f BillingFrequency) Months() int {
	switch f {
	case FrequencyMonthly:
		return 1
	case FrequencyQuarterly:
		return 3
	case FrequencySemiAnnual:
		return 6
	case FrequencyYearly:
		return 12
	}
	return 0
}

// AllBillingFrequencies returns all valid billing frequencies
func AllBillingFrequencies() []BillingFrequency {
	return []BillingFrequency{
		FrequencyMonthly,
		FrequencyQuarterly,
		FrequencySemiAnnual,
		FrequencyYearly,
	}
}

// Member is the engine's read-only view of a registered member.
// Member records are maintained outside this engine; the billing code only
// reads them to decide what to invoice.
type Member struct {
	ID             uuid.UUID
	Name           string
	Phone          string
	Frequency      BillingFrequency
	AmountPerCycle valueobject.Money
	StartDate      time.Time
	Active         bool
}

// AnchorPeriod returns the member's first billing period, derived from the
// start date. All of the member's periods are aligned to this anchor.
func (m *Member) AnchorPeriod() Period {
	return PeriodOf(m.StartDate)
}

// BillsInPeriod reports whether the given period is one of the member's
// billing periods. Monthly members bill every calendar month from the
// anchor onward; other frequencies bill only on months aligned to their
// own anchor, not to a calendar-fixed grid.
func (m *Member) BillsInPeriod(p Period) bool {
	anchor := m.AnchorPeriod()
	if p.Before(anchor) {
		return false
	}
	step := m.Frequency.Months()
	if step <= 0 {
		return false
	}
	return MonthsBetween(anchor, p)%step == 0
}

// PeriodsBetween returns the member's billing periods in [from, to],
// ordered ascending. The sequence starts no earlier than the member's
// anchor period and advances strictly by the member's frequency.
func (m *Member) PeriodsBetween(from, to Period) ([]Period, error) {
	if to.Before(from) {
		return nil, ErrInvalidPeriodRange
	}
	anchor := m.AnchorPeriod()
	step := m.Frequency.Months()

	// Advance the anchor to the first of the member's periods >= from.
	p := anchor
	if anchor.Before(from) {
		gap := MonthsBetween(anchor, from)
		cycles := gap / step
		if gap%step != 0 {
			cycles++
		}
		p = anchor.AddMonths(cycles * step)
	}

	var periods []Period
	for !to.Before(p) {
		periods = append(periods, p)
		p = p.AddMonths(step)
	}
	return periods, nil
}
