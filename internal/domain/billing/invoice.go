package billing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/masjid/backend/internal/domain/shared"
	"github.com/masjid/backend/internal/domain/shared/valueobject"
)

// InvoiceStatus represents the payment status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusUnpaid  InvoiceStatus = "UNPAID"  // No payment applied
	InvoiceStatusPartial InvoiceStatus = "PARTIAL" // 0 < paid < due
	InvoiceStatusPaid    InvoiceStatus = "PAID"    // Fully paid, terminal
)

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusUnpaid, InvoiceStatusPartial, InvoiceStatusPaid:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsTerminal returns true if no further payments can be applied
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusPaid
}

// CanApplyPayment returns true if payments can be applied in this status
func (s InvoiceStatus) CanApplyPayment() bool {
	return s == InvoiceStatusUnpaid || s == InvoiceStatusPartial
}

// Invoice is the durable record of one billing cycle owed by one member.
// Exactly one invoice exists per (member, period) pair; that pair is the
// idempotency key for generation. AmountPaid only ever increases, and
// Status is derived from AmountPaid vs AmountDue.
type Invoice struct {
	shared.BaseAggregateRoot
	MemberID   uuid.UUID
	Period     Period
	AmountDue  valueobject.Money
	AmountPaid valueobject.Money
	Status     InvoiceStatus
	DueDate    time.Time
	PaidAt     *time.Time
}

// NewInvoice creates an unpaid invoice for a member and period
func NewInvoice(memberID uuid.UUID, period Period, amountDue valueobject.Money, dueDate time.Time) (*Invoice, error) {
	if memberID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_MEMBER", "Member ID cannot be empty")
	}
	if !period.IsValid() {
		return nil, ErrInvalidPeriod
	}
	if !amountDue.IsPositive() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Invoice amount must be positive")
	}
	return &Invoice{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		MemberID:          memberID,
		Period:            period,
		AmountDue:         amountDue,
		AmountPaid:        valueobject.Zero(),
		Status:            InvoiceStatusUnpaid,
		DueDate:           dueDate,
	}, nil
}

// Outstanding returns the unpaid balance
func (i *Invoice) Outstanding() valueobject.Money {
	return i.AmountDue.Subtract(i.AmountPaid)
}

// IsOverdue returns true if the invoice is unpaid past its due date
func (i *Invoice) IsOverdue(now time.Time) bool {
	return i.Status.CanApplyPayment() && now.After(i.DueDate)
}

// ApplyPayment increases AmountPaid by the given amount and recomputes the
// status. The amount must be positive and must not exceed the outstanding
// balance; AmountPaid never decreases and never exceeds AmountDue.
func (i *Invoice) ApplyPayment(amount valueobject.Money) error {
	if !i.Status.CanApplyPayment() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot apply payment to invoice in %s status", i.Status))
	}
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if amount.GreaterThan(i.Outstanding()) {
		return shared.NewDomainError("EXCEEDS_OUTSTANDING",
			fmt.Sprintf("Payment %s exceeds outstanding balance %s", amount, i.Outstanding()))
	}

	i.AmountPaid = i.AmountPaid.Add(amount)
	if i.Outstanding().IsZero() {
		now := time.Now()
		i.Status = InvoiceStatusPaid
		i.PaidAt = &now
	} else {
		i.Status = InvoiceStatusPartial
	}

	i.UpdatedAt = time.Now()
	i.IncrementVersion()
	return nil
}
