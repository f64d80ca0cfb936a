package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/masjid/backend/internal/domain/shared/valueobject"
)

// ArrearsLine is one unpaid or partially paid period in a member's arrears
type ArrearsLine struct {
	InvoiceID   uuid.UUID         `json:"invoice_id"`
	Period      Period            `json:"period"`
	AmountDue   valueobject.Money `json:"amount_due"`
	AmountPaid  valueobject.Money `json:"amount_paid"`
	Outstanding valueobject.Money `json:"outstanding"`
	Status      InvoiceStatus     `json:"status"`
	DueDate     time.Time         `json:"due_date"`
}

// ArrearsSummary is the derived arrears position of one member. It is
// never stored; it is recomputed from the invoice set on each read.
type ArrearsSummary struct {
	MemberID         uuid.UUID         `json:"member_id"`
	MemberName       string            `json:"member_name"`
	TotalOutstanding valueobject.Money `json:"total_outstanding"`
	UnpaidPeriods    []ArrearsLine     `json:"unpaid_periods"`
	OldestPeriod     Period            `json:"oldest_period,omitempty"`
	OverdueCount     int               `json:"overdue_count"`
}

// HasArrears returns true if the member owes anything
func (s *ArrearsSummary) HasArrears() bool {
	return s.TotalOutstanding.IsPositive()
}

// NewArrearsSummary aggregates a member's outstanding invoices into an
// arrears summary. Ordering of UnpaidPeriods is identical to allocation
// order (oldest first).
func NewArrearsSummary(member *Member, invoices []Invoice, now time.Time) ArrearsSummary {
	open := make([]Invoice, 0, len(invoices))
	for _, inv := range invoices {
		if inv.Status.CanApplyPayment() && inv.Outstanding().IsPositive() {
			open = append(open, inv)
		}
	}
	SortOutstanding(open)

	summary := ArrearsSummary{
		MemberID:         member.ID,
		MemberName:       member.Name,
		TotalOutstanding: valueobject.Zero(),
		UnpaidPeriods:    make([]ArrearsLine, 0, len(open)),
	}
	for _, inv := range open {
		summary.UnpaidPeriods = append(summary.UnpaidPeriods, ArrearsLine{
			InvoiceID:   inv.ID,
			Period:      inv.Period,
			AmountDue:   inv.AmountDue,
			AmountPaid:  inv.AmountPaid,
			Outstanding: inv.Outstanding(),
			Status:      inv.Status,
			DueDate:     inv.DueDate,
		})
		summary.TotalOutstanding = summary.TotalOutstanding.Add(inv.Outstanding())
		if inv.IsOverdue(now) {
			summary.OverdueCount++
		}
	}
	if len(open) > 0 {
		summary.OldestPeriod = open[0].Period
	}
	return summary
}
