package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/masjid/backend/internal/domain/shared"
	"github.com/masjid/backend/internal/domain/shared/valueobject"
)

// PaymentMethod represents how a payment was made
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodOnline       PaymentMethod = "ONLINE"
)

// IsValid checks if the payment method is valid
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodBankTransfer, PaymentMethodOnline:
		return true
	}
	return false
}

// String returns the string representation of PaymentMethod
func (m PaymentMethod) String() string {
	return string(m)
}

// PaymentMeta carries the shared attributes of every payment produced by
// one allocation: how the money arrived and which bank account received it.
type PaymentMeta struct {
	Method        PaymentMethod
	BankAccountID *uuid.UUID
	Remark        string
}

// Validate checks the payment metadata
func (m PaymentMeta) Validate() error {
	if !m.Method.IsValid() {
		return shared.NewDomainError("INVALID_METHOD", "Unknown payment method")
	}
	if m.Method != PaymentMethodCash && m.BankAccountID == nil {
		return shared.NewDomainError("INVALID_METHOD", "Non-cash payments require a bank account")
	}
	return nil
}

// Payment records one amount applied against one invoice. An invoice may
// carry many payments; their amounts always sum to the invoice's
// AmountPaid. Payments created in the same allocation share a receipt
// number, so a single paper receipt can represent the whole collection.
type Payment struct {
	shared.BaseEntity
	InvoiceID     uuid.UUID
	MemberID      uuid.UUID
	Amount        valueobject.Money
	Method        PaymentMethod
	BankAccountID *uuid.UUID
	ReceiptNo     string
	Remark        string
	PaidAt        time.Time
}

// NewPayment creates a payment record against an invoice
func NewPayment(invoiceID, memberID uuid.UUID, amount valueobject.Money, meta PaymentMeta, receiptNo string) (*Payment, error) {
	if invoiceID == uuid.Nil || memberID == uuid.Nil {
		return nil, shared.ErrInvalidInput
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	if receiptNo == "" {
		return nil, shared.NewDomainError("INVALID_RECEIPT", "Receipt number cannot be empty")
	}
	return &Payment{
		BaseEntity:    shared.NewBaseEntity(),
		InvoiceID:     invoiceID,
		MemberID:      memberID,
		Amount:        amount,
		Method:        meta.Method,
		BankAccountID: meta.BankAccountID,
		ReceiptNo:     receiptNo,
		Remark:        meta.Remark,
		PaidAt:        time.Now(),
	}, nil
}
