package billing

import (
	"github.com/google/uuid"
	"github.com/masjid/backend/internal/domain/shared"
	"github.com/masjid/backend/internal/domain/shared/valueobject"
)

// Event types for the billing domain
const (
	EventTypePaymentAllocated  = "billing.payment_allocated"
	EventTypeInvoicesGenerated = "billing.invoices_generated"
)

// PaymentAllocatedEvent is raised after a payment has been committed
// against a member's invoices. One event covers the whole receipt.
type PaymentAllocatedEvent struct {
	shared.BaseDomainEvent
	MemberID     uuid.UUID         `json:"member_id"`
	ReceiptNo    string            `json:"receipt_no"`
	Method       PaymentMethod     `json:"method"`
	TotalApplied valueobject.Money `json:"total_applied"`
	InvoiceIDs   []uuid.UUID       `json:"invoice_ids"`
}

// NewPaymentAllocatedEvent creates a PaymentAllocatedEvent
func NewPaymentAllocatedEvent(memberID uuid.UUID, receiptNo string, method PaymentMethod, totalApplied valueobject.Money, invoiceIDs []uuid.UUID) *PaymentAllocatedEvent {
	return &PaymentAllocatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentAllocated, "Member", memberID),
		MemberID:        memberID,
		ReceiptNo:       receiptNo,
		Method:          method,
		TotalApplied:    totalApplied,
		InvoiceIDs:      invoiceIDs,
	}
}

// InvoicesGeneratedEvent is raised after a generation cycle for one
// period has completed.
type InvoicesGeneratedEvent struct {
	shared.BaseDomainEvent
	Period    Period `json:"period"`
	Generated int    `json:"generated"`
	Skipped   int    `json:"skipped"`
}

// NewInvoicesGeneratedEvent creates an InvoicesGeneratedEvent
func NewInvoicesGeneratedEvent(period Period, generated, skipped int) *InvoicesGeneratedEvent {
	return &InvoicesGeneratedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoicesGenerated, "Period", uuid.New()),
		Period:          period,
		Generated:       generated,
		Skipped:         skipped,
	}
}
