package billing

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/masjid/backend/internal/domain/billing"
	"github.com/masjid/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// ArrearsService answers the read side of the engine: who owes what, for
// which periods, in the order payments will settle them. It never mutates
// the invoice store.
type ArrearsService struct {
	members  billing.MemberRepository
	invoices billing.InvoiceRepository
	payments billing.PaymentRepository
	logger   *zap.Logger
}

// NewArrearsService creates a new ArrearsService
func NewArrearsService(
	members billing.MemberRepository,
	invoices billing.InvoiceRepository,
	payments billing.PaymentRepository,
	logger *zap.Logger,
) *ArrearsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArrearsService{
		members:  members,
		invoices: invoices,
		payments: payments,
		logger:   logger,
	}
}

// ArrearsFor returns the member's arrears summary. UnpaidPeriods are
// ordered oldest first, identical to allocation order.
func (s *ArrearsService) ArrearsFor(ctx context.Context, memberID uuid.UUID) (*billing.ArrearsSummary, error) {
	member, err := s.members.FindByID(ctx, memberID)
	if err != nil {
		return nil, err
	}
	invoices, err := s.invoices.FindOutstandingByMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	summary := billing.NewArrearsSummary(member, invoices, time.Now())
	return &summary, nil
}

// ArrearsForAll returns an arrears summary for every member that owes
// anything, ordered by member name for the outstanding-members report.
func (s *ArrearsService) ArrearsForAll(ctx context.Context) ([]billing.ArrearsSummary, error) {
	invoices, err := s.invoices.FindAllOutstanding(ctx)
	if err != nil {
		return nil, err
	}

	byMember := make(map[uuid.UUID][]billing.Invoice)
	memberIDs := make([]uuid.UUID, 0)
	for _, inv := range invoices {
		if _, seen := byMember[inv.MemberID]; !seen {
			memberIDs = append(memberIDs, inv.MemberID)
		}
		byMember[inv.MemberID] = append(byMember[inv.MemberID], inv)
	}
	if len(memberIDs) == 0 {
		return []billing.ArrearsSummary{}, nil
	}

	members, err := s.members.FindByIDs(ctx, memberIDs)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	summaries := make([]billing.ArrearsSummary, 0, len(members))
	for i := range members {
		summary := billing.NewArrearsSummary(&members[i], byMember[members[i].ID], now)
		if summary.HasArrears() {
			summaries = append(summaries, summary)
		}
	}

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].MemberName != summaries[j].MemberName {
			return summaries[i].MemberName < summaries[j].MemberName
		}
		return summaries[i].MemberID.String() < summaries[j].MemberID.String()
	})
	return summaries, nil
}

// PendingInvoicesFor returns the member's open invoices oldest first, for
// rendering allocation previews before committing a payment.
func (s *ArrearsService) PendingInvoicesFor(ctx context.Context, memberID uuid.UUID) ([]billing.Invoice, error) {
	if _, err := s.members.FindByID(ctx, memberID); err != nil {
		return nil, err
	}
	invoices, err := s.invoices.FindOutstandingByMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	billing.SortOutstanding(invoices)
	return invoices, nil
}

// PaymentsFor returns the member's payment history, newest first, for
// receipt re-printing.
func (s *ArrearsService) PaymentsFor(ctx context.Context, memberID uuid.UUID, filter shared.Filter) ([]billing.Payment, int64, error) {
	if _, err := s.members.FindByID(ctx, memberID); err != nil {
		return nil, 0, err
	}
	return s.payments.FindByMember(ctx, memberID, filter)
}

// InvoicesFor returns the member's full invoice history, paid and open
// alike, for the member ledger view.
func (s *ArrearsService) InvoicesFor(ctx context.Context, memberID uuid.UUID, filter shared.Filter) ([]billing.Invoice, int64, error) {
	if _, err := s.members.FindByID(ctx, memberID); err != nil {
		return nil, 0, err
	}
	return s.invoices.FindByMember(ctx, memberID, filter)
}

// Members returns the member directory for collection screens.
func (s *ArrearsService) Members(ctx context.Context, filter shared.Filter) ([]billing.Member, int64, error) {
	return s.members.FindAll(ctx, filter)
}
