package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/masjid/backend/internal/domain/billing"
	"github.com/masjid/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// AllocatePaymentRequest is the body of a single-member payment submission.
// The amount is authoritative input only; how it spreads across invoices
// is decided server-side, oldest period first. It binds as a decimal so
// the value reaches the allocator without a float round trip.
type AllocatePaymentRequest struct {
	MemberID      string           `json:"member_id" binding:"required,uuid"`
	Amount        *decimal.Decimal `json:"amount" binding:"required"`
	Method        string           `json:"method" binding:"required,oneof=CASH BANK_TRANSFER ONLINE"`
	BankAccountID *string          `json:"bank_account_id" binding:"omitempty,uuid"`
	Remark        string           `json:"remark" binding:"max=255"`
}

// BulkSelectionRequest is one (member, period) cell picked in the
// collection matrix
type BulkSelectionRequest struct {
	MemberID string `json:"member_id" binding:"required,uuid"`
	Period   string `json:"period" binding:"required"`
}

// BulkCollectRequest is the body of a bulk collection submission
type BulkCollectRequest struct {
	Selections    []BulkSelectionRequest `json:"selections" binding:"required,min=1,dive"`
	Method        string                 `json:"method" binding:"required,oneof=CASH BANK_TRANSFER ONLINE"`
	BankAccountID *string                `json:"bank_account_id" binding:"omitempty,uuid"`
	Remark        string                 `json:"remark" binding:"max=255"`
}

// PaymentMeta converts the request's method fields into domain metadata
func (r AllocatePaymentRequest) PaymentMeta() (billing.PaymentMeta, error) {
	return buildPaymentMeta(r.Method, r.BankAccountID, r.Remark)
}

// PaymentMeta converts the request's method fields into domain metadata
func (r BulkCollectRequest) PaymentMeta() (billing.PaymentMeta, error) {
	return buildPaymentMeta(r.Method, r.BankAccountID, r.Remark)
}

func buildPaymentMeta(method string, bankAccountID *string, remark string) (billing.PaymentMeta, error) {
	meta := billing.PaymentMeta{
		Method: billing.PaymentMethod(method),
		Remark: remark,
	}
	if bankAccountID != nil {
		id, err := uuid.Parse(*bankAccountID)
		if err != nil {
			return billing.PaymentMeta{}, err
		}
		meta.BankAccountID = &id
	}
	return meta, nil
}

// MemberResponse represents a member in API responses
type MemberResponse struct {
	ID             uuid.UUID         `json:"id"`
	Name           string            `json:"name"`
	Phone          string            `json:"phone,omitempty"`
	Frequency      string            `json:"frequency"`
	AmountPerCycle valueobject.Money `json:"amount_per_cycle"`
	StartDate      time.Time         `json:"start_date"`
	Active         bool              `json:"active"`
}

// NewMemberResponse maps a domain member to its API shape
func NewMemberResponse(m *billing.Member) MemberResponse {
	return MemberResponse{
		ID:             m.ID,
		Name:           m.Name,
		Phone:          m.Phone,
		Frequency:      string(m.Frequency),
		AmountPerCycle: m.AmountPerCycle,
		StartDate:      m.StartDate,
		Active:         m.Active,
	}
}

// InvoiceResponse represents an invoice in API responses
type InvoiceResponse struct {
	ID          uuid.UUID         `json:"id"`
	MemberID    uuid.UUID         `json:"member_id"`
	Period      string            `json:"period"`
	AmountDue   valueobject.Money `json:"amount_due"`
	AmountPaid  valueobject.Money `json:"amount_paid"`
	Outstanding valueobject.Money `json:"outstanding"`
	Status      string            `json:"status"`
	DueDate     time.Time         `json:"due_date"`
	PaidAt      *time.Time        `json:"paid_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// NewInvoiceResponse maps a domain invoice to its API shape
func NewInvoiceResponse(inv *billing.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:          inv.ID,
		MemberID:    inv.MemberID,
		Period:      inv.Period.String(),
		AmountDue:   inv.AmountDue,
		AmountPaid:  inv.AmountPaid,
		Outstanding: inv.Outstanding(),
		Status:      string(inv.Status),
		DueDate:     inv.DueDate,
		PaidAt:      inv.PaidAt,
		CreatedAt:   inv.CreatedAt,
		UpdatedAt:   inv.UpdatedAt,
	}
}

// PaymentResponse represents a payment record in API responses
type PaymentResponse struct {
	ID            uuid.UUID         `json:"id"`
	InvoiceID     uuid.UUID         `json:"invoice_id"`
	MemberID      uuid.UUID         `json:"member_id"`
	Amount        valueobject.Money `json:"amount"`
	Method        string            `json:"method"`
	BankAccountID *uuid.UUID        `json:"bank_account_id,omitempty"`
	ReceiptNo     string            `json:"receipt_no"`
	Remark        string            `json:"remark,omitempty"`
	PaidAt        time.Time         `json:"paid_at"`
}

// NewPaymentResponse maps a domain payment to its API shape
func NewPaymentResponse(p *billing.Payment) PaymentResponse {
	return PaymentResponse{
		ID:            p.ID,
		InvoiceID:     p.InvoiceID,
		MemberID:      p.MemberID,
		Amount:        p.Amount,
		Method:        string(p.Method),
		BankAccountID: p.BankAccountID,
		ReceiptNo:     p.ReceiptNo,
		Remark:        p.Remark,
		PaidAt:        p.PaidAt,
	}
}
