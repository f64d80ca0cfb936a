package billing

import (
	"testing"
	"time"

	"github.com/masjid/backend/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewArrearsSummary(t *testing.T) {
	member := testMember(FrequencyMonthly, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	invoices := threeMonthArrears(t)
	for i := range invoices {
		invoices[i].MemberID = member.ID
	}

	// Feb partially paid
	SortOutstanding(invoices)
	require.NoError(t, invoices[1].ApplyPayment(valueobject.NewMoneyFromInt(300)))

	now := time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC)
	summary := NewArrearsSummary(member, invoices, now)

	assert.Equal(t, member.ID, summary.MemberID)
	assert.True(t, summary.HasArrears())
	assert.True(t, summary.TotalOutstanding.Equals(valueobject.NewMoneyFromInt(2700)))
	assert.Equal(t, Period("2025-01"), summary.OldestPeriod)

	require.Len(t, summary.UnpaidPeriods, 3)
	assert.Equal(t, Period("2025-01"), summary.UnpaidPeriods[0].Period)
	assert.Equal(t, Period("2025-02"), summary.UnpaidPeriods[1].Period)
	assert.Equal(t, Period("2025-03"), summary.UnpaidPeriods[2].Period)
	assert.True(t, summary.UnpaidPeriods[1].Outstanding.Equals(valueobject.NewMoneyFromInt(700)))

	// Jan and Feb due dates have passed, Mar has not
	assert.Equal(t, 2, summary.OverdueCount)
}

func TestNewArrearsSummary_ExcludesPaidInvoices(t *testing.T) {
	member := testMember(FrequencyMonthly, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	invoices := threeMonthArrears(t)
	SortOutstanding(invoices)
	require.NoError(t, invoices[0].ApplyPayment(valueobject.NewMoneyFromInt(1000)))

	summary := NewArrearsSummary(member, invoices, time.Now())

	assert.Len(t, summary.UnpaidPeriods, 2)
	assert.Equal(t, Period("2025-02"), summary.OldestPeriod)
	assert.True(t, summary.TotalOutstanding.Equals(valueobject.NewMoneyFromInt(2000)))
}

func TestNewArrearsSummary_NoArrears(t *testing.T) {
	member := testMember(FrequencyMonthly, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	summary := NewArrearsSummary(member, nil, time.Now())

	assert.False(t, summary.HasArrears())
	assert.True(t, summary.TotalOutstanding.IsZero())
	assert.Empty(t, summary.UnpaidPeriods)
	assert.Equal(t, Period(""), summary.OldestPeriod)
	assert.Zero(t, summary.OverdueCount)
}

func TestArrearsOrderingMatchesAllocationOrder(t *testing.T) {
	member := testMember(FrequencyMonthly, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	invoices := threeMonthArrears(t)

	summary := NewArrearsSummary(member, invoices, time.Now())

	plan, err := NewAllocator().Plan(valueobject.NewMoneyFromInt(3000), invoices)
	require.NoError(t, err)

	require.Equal(t, len(summary.UnpaidPeriods), len(plan.Lines))
	for i := range plan.Lines {
		assert.Equal(t, summary.UnpaidPeriods[i].InvoiceID, plan.Lines[i].InvoiceID)
		assert.Equal(t, summary.UnpaidPeriods[i].Period, plan.Lines[i].Period)
	}
}
