package billing

import (
	"fmt"
	"regexp"
	"time"
)

// Period identifies one billing cycle by the calendar month it starts in,
// formatted "YYYY-MM". The lexicographic order of period strings matches
// their chronological order, so Period values can be compared and sorted
// directly.
type Period string

var periodPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// NewPeriod creates a Period for the given year and month
func NewPeriod(year int, month time.Month) Period {
	return Period(fmt.Sprintf("%04d-%02d", year, month))
}

// ParsePeriod validates and parses a period string
func ParsePeriod(s string) (Period, error) {
	if !periodPattern.MatchString(s) {
		return "", ErrInvalidPeriod
	}
	return Period(s), nil
}

// PeriodOf returns the period containing the given time
func PeriodOf(t time.Time) Period {
	return NewPeriod(t.Year(), t.Month())
}

// CurrentPeriod returns the period containing the current time
func CurrentPeriod() Period {
	return PeriodOf(time.Now())
}

// IsValid checks if the period string is well formed
func (p Period) IsValid() bool {
	return periodPattern.MatchString(string(p))
}

// String returns the string representation of the period
func (p Period) String() string {
	return string(p)
}

// Year returns the period's year
func (p Period) Year() int {
	return p.Start().Year()
}

// Month returns the period's starting month
func (p Period) Month() time.Month {
	return p.Start().Month()
}

// Start returns the first instant of the period (UTC midnight on the
// first day of the month)
func (p Period) Start() time.Time {
	t, err := time.Parse("2006-01", string(p))
	if err != nil {
		return time.Time{}
	}
	return t
}

// EndOfMonth returns the last day of the period's starting month
func (p Period) EndOfMonth() time.Time {
	return p.Start().AddDate(0, 1, -1)
}

// AddMonths returns the period n calendar months later (or earlier for
// negative n)
func (p Period) AddMonths(n int) Period {
	return PeriodOf(p.Start().AddDate(0, n, 0))
}

// Next returns the period one frequency step later
func (p Period) Next(f BillingFrequency) Period {
	return p.AddMonths(f.Months())
}

// Before reports whether p is chronologically before other
func (p Period) Before(other Period) bool {
	return p < other
}

// After reports whether p is chronologically after other
func (p Period) After(other Period) bool {
	return p > other
}

// MonthsBetween returns the number of calendar months from a to b.
// Negative if b is before a.
func MonthsBetween(a, b Period) int {
	as, bs := a.Start(), b.Start()
	return (bs.Year()-as.Year())*12 + int(bs.Month()) - int(as.Month())
}
