package billing

import (
	"context"

	"github.com/google/uuid"
	"github.com/masjid/backend/internal/domain/shared"
)

// MemberRepository provides read access to member records. Members are
// maintained outside the billing engine.
type MemberRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Member, error)
	FindActive(ctx context.Context) ([]Member, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Member, error)
	// FindAll returns the member directory with pagination, sorting and an
	// optional name search
	FindAll(ctx context.Context, filter shared.Filter) ([]Member, int64, error)
}

// InvoiceRepository persists invoices. Implementations must enforce a
// uniqueness constraint on (member_id, period) and surface violations as
// shared.ErrAlreadyExists so generation can treat them as skips.
type InvoiceRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	FindByMemberAndPeriod(ctx context.Context, memberID uuid.UUID, period Period) (*Invoice, error)
	FindByMemberAndPeriods(ctx context.Context, memberID uuid.UUID, periods []Period) ([]Invoice, error)
	// FindOutstandingByMember returns the member's unpaid and partial
	// invoices ordered oldest period first
	FindOutstandingByMember(ctx context.Context, memberID uuid.UUID) ([]Invoice, error)
	// FindAllOutstanding returns every open invoice, grouped by member
	FindAllOutstanding(ctx context.Context) ([]Invoice, error)
	// FindByMember returns the member's full invoice history with
	// pagination and sorting
	FindByMember(ctx context.Context, memberID uuid.UUID, filter shared.Filter) ([]Invoice, int64, error)
	ExistsForPeriod(ctx context.Context, memberID uuid.UUID, period Period) (bool, error)
	Create(ctx context.Context, invoice *Invoice) error
	// SaveWithLock updates an invoice guarded by its version; a stale
	// version surfaces shared.ErrConcurrencyConflict
	SaveWithLock(ctx context.Context, invoice *Invoice) error
}

// PaymentRepository persists payment records
type PaymentRepository interface {
	Create(ctx context.Context, payment *Payment) error
	CreateBatch(ctx context.Context, payments []*Payment) error
	FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]Payment, error)
	FindByMember(ctx context.Context, memberID uuid.UUID, filter shared.Filter) ([]Payment, int64, error)
	FindByReceiptNo(ctx context.Context, receiptNo string) ([]Payment, error)
}

// ReceiptNumberGenerator mints receipt numbers. Numbers are unique and
// strictly increasing within a year.
type ReceiptNumberGenerator interface {
	Next(ctx context.Context) (string, error)
}
