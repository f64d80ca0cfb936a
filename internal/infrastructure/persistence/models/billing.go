package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/masjid/backend/internal/domain/billing"
	"github.com/masjid/backend/internal/domain/shared"
	"github.com/masjid/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// MemberModel is the persistence model for the billing view of a member.
type MemberModel struct {
	BaseModel
	Name           string                   `gorm:"type:varchar(200);not null;index"`
	Phone          string                   `gorm:"type:varchar(30)"`
	Frequency      billing.BillingFrequency `gorm:"type:varchar(20);not null;default:'MONTHLY'"`
	AmountPerCycle decimal.Decimal          `gorm:"type:decimal(18,2);not null"`
	StartDate      time.Time                `gorm:"not null"`
	Active         bool                     `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (MemberModel) TableName() string {
	return "members"
}

// ToDomain converts the persistence model to a domain Member.
func (m *MemberModel) ToDomain() *billing.Member {
	return &billing.Member{
		ID:             m.ID,
		Name:           m.Name,
		Phone:          m.Phone,
		Frequency:      m.Frequency,
		AmountPerCycle: valueobject.NewMoney(m.AmountPerCycle),
		StartDate:      m.StartDate,
		Active:         m.Active,
	}
}

// InvoiceModel is the persistence model for the Invoice aggregate root.
// The unique index on (member_id, period) is what makes invoice generation
// idempotent under concurrent runs.
type InvoiceModel struct {
	AggregateModel
	MemberID   uuid.UUID             `gorm:"type:uuid;not null;uniqueIndex:idx_invoices_member_period,priority:1"`
	Period     billing.Period        `gorm:"type:char(7);not null;uniqueIndex:idx_invoices_member_period,priority:2;index"`
	AmountDue  decimal.Decimal       `gorm:"type:decimal(18,2);not null"`
	AmountPaid decimal.Decimal       `gorm:"type:decimal(18,2);not null"`
	Status     billing.InvoiceStatus `gorm:"type:varchar(20);not null;default:'UNPAID';index"`
	DueDate    time.Time             `gorm:"not null;index"`
	PaidAt     *time.Time
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice.
func (m *InvoiceModel) ToDomain() *billing.Invoice {
	return &billing.Invoice{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.UpdatedAt,
			},
			Version: m.Version,
		},
		MemberID:   m.MemberID,
		Period:     m.Period,
		AmountDue:  valueobject.NewMoney(m.AmountDue),
		AmountPaid: valueobject.NewMoney(m.AmountPaid),
		Status:     m.Status,
		DueDate:    m.DueDate,
		PaidAt:     m.PaidAt,
	}
}

// FromDomain populates the persistence model from a domain Invoice.
func (m *InvoiceModel) FromDomain(inv *billing.Invoice) {
	m.FromDomainAggregateRoot(inv.BaseAggregateRoot)
	m.MemberID = inv.MemberID
	m.Period = inv.Period
	m.AmountDue = inv.AmountDue.Amount()
	m.AmountPaid = inv.AmountPaid.Amount()
	m.Status = inv.Status
	m.DueDate = inv.DueDate
	m.PaidAt = inv.PaidAt
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice.
func InvoiceModelFromDomain(inv *billing.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// PaymentModel is the persistence model for a payment record.
type PaymentModel struct {
	BaseModel
	InvoiceID     uuid.UUID             `gorm:"type:uuid;not null;index"`
	MemberID      uuid.UUID             `gorm:"type:uuid;not null;index"`
	Amount        decimal.Decimal       `gorm:"type:decimal(18,2);not null"`
	Method        billing.PaymentMethod `gorm:"type:varchar(20);not null"`
	BankAccountID *uuid.UUID            `gorm:"type:uuid"`
	ReceiptNo     string                `gorm:"type:varchar(30);not null;index"`
	Remark        string                `gorm:"type:varchar(500)"`
	PaidAt        time.Time             `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment.
func (m *PaymentModel) ToDomain() *billing.Payment {
	return &billing.Payment{
		BaseEntity:    m.BaseModel.ToDomain(),
		InvoiceID:     m.InvoiceID,
		MemberID:      m.MemberID,
		Amount:        valueobject.NewMoney(m.Amount),
		Method:        m.Method,
		BankAccountID: m.BankAccountID,
		ReceiptNo:     m.ReceiptNo,
		Remark:        m.Remark,
		PaidAt:        m.PaidAt,
	}
}

// FromDomain populates the persistence model from a domain Payment.
func (m *PaymentModel) FromDomain(p *billing.Payment) {
	m.FromDomainBaseEntity(p.BaseEntity)
	m.InvoiceID = p.InvoiceID
	m.MemberID = p.MemberID
	m.Amount = p.Amount.Amount()
	m.Method = p.Method
	m.BankAccountID = p.BankAccountID
	m.ReceiptNo = p.ReceiptNo
	m.Remark = p.Remark
	m.PaidAt = p.PaidAt
}

// PaymentModelFromDomain creates a new persistence model from a domain Payment.
func PaymentModelFromDomain(p *billing.Payment) *PaymentModel {
	m := &PaymentModel{}
	m.FromDomain(p)
	return m
}

// ReceiptCounterModel holds the per-year receipt number counter.
type ReceiptCounterModel struct {
	Year    int   `gorm:"primaryKey"`
	Counter int64 `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ReceiptCounterModel) TableName() string {
	return "receipt_counters"
}
