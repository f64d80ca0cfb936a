package billing

import (
	"sort"

	"github.com/google/uuid"
	"github.com/masjid/backend/internal/domain/shared/valueobject"
)

// SortOutstanding orders invoices the way payments settle them: oldest
// period first, with creation time as the tiebreak. The arrears report
// uses the same ordering so what a caller reads matches what a payment
// will actually pay off.
func SortOutstanding(invoices []Invoice) {
	sort.Slice(invoices, func(i, j int) bool {
		if invoices[i].Period != invoices[j].Period {
			return invoices[i].Period.Before(invoices[j].Period)
		}
		return invoices[i].CreatedAt.Before(invoices[j].CreatedAt)
	})
}

// AllocationLine records one amount applied against one invoice
type AllocationLine struct {
	InvoiceID       uuid.UUID
	Period          Period
	Amount          valueobject.Money
	ResultingStatus InvoiceStatus
}

// AllocationPlan is the computed distribution of one payment across a
// member's outstanding invoices
type AllocationPlan struct {
	Lines            []AllocationLine
	TotalApplied     valueobject.Money
	AdvanceRemainder valueobject.Money
	FullyPaid        []uuid.UUID
	PartiallyPaid    []uuid.UUID
}

// FullySettled returns true if every invoice in the plan ends up paid and
// nothing is left over
func (p *AllocationPlan) FullySettled() bool {
	return p.AdvanceRemainder.IsZero() && len(p.PartiallyPaid) == 0
}

// Allocator is the waterfall allocation domain service. Given a payment
// amount and a member's outstanding invoices it computes which invoice
// absorbs how much, oldest arrears first, until the amount is exhausted.
// The allocator is pure: it never mutates the invoices it plans over.
type Allocator struct{}

// NewAllocator creates a waterfall allocator
func NewAllocator() *Allocator {
	return &Allocator{}
}

// Plan distributes total across the outstanding invoices oldest-first.
// Whatever is left after all invoices are settled is reported as
// AdvanceRemainder; the allocator never invents future invoices to absorb
// it.
func (a *Allocator) Plan(total valueobject.Money, invoices []Invoice) (*AllocationPlan, error) {
	if !total.IsPositive() {
		return nil, ErrInvalidAmount
	}

	open := make([]Invoice, 0, len(invoices))
	for _, inv := range invoices {
		if inv.Status.CanApplyPayment() && inv.Outstanding().IsPositive() {
			open = append(open, inv)
		}
	}
	if len(open) == 0 {
		return nil, ErrNoOutstandingInvoices
	}
	SortOutstanding(open)

	plan := &AllocationPlan{
		Lines:         make([]AllocationLine, 0, len(open)),
		TotalApplied:  valueobject.Zero(),
		FullyPaid:     make([]uuid.UUID, 0),
		PartiallyPaid: make([]uuid.UUID, 0),
	}

	remaining := total
	for _, inv := range open {
		if !remaining.IsPositive() {
			break
		}
		due := inv.Outstanding()
		applied := remaining.Min(due)

		line := AllocationLine{
			InvoiceID: inv.ID,
			Period:    inv.Period,
			Amount:    applied,
		}
		if applied.Equals(due) {
			line.ResultingStatus = InvoiceStatusPaid
			plan.FullyPaid = append(plan.FullyPaid, inv.ID)
		} else {
			line.ResultingStatus = InvoiceStatusPartial
			plan.PartiallyPaid = append(plan.PartiallyPaid, inv.ID)
		}
		plan.Lines = append(plan.Lines, line)
		plan.TotalApplied = plan.TotalApplied.Add(applied)
		remaining = remaining.Subtract(applied)
	}

	plan.AdvanceRemainder = remaining
	return plan, nil
}
