package billing

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/masjid/backend/internal/domain/billing"
	"github.com/masjid/backend/internal/domain/shared"
)

// fakeMemberRepository is an in-memory MemberRepository for service tests
type fakeMemberRepository struct {
	mu      sync.RWMutex
	members map[uuid.UUID]billing.Member
}

func newFakeMemberRepository(members ...billing.Member) *fakeMemberRepository {
	repo := &fakeMemberRepository{members: make(map[uuid.UUID]billing.Member)}
	for _, m := range members {
		repo.members[m.ID] = m
	}
	return repo
}

func (r *fakeMemberRepository) FindByID(_ context.Context, id uuid.UUID) (*billing.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.members[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &m, nil
}

func (r *fakeMemberRepository) FindActive(_ context.Context) ([]billing.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var active []billing.Member
	for _, m := range r.members {
		if m.Active {
			active = append(active, m)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].Name < active[j].Name })
	return active, nil
}

func (r *fakeMemberRepository) FindAll(_ context.Context, filter shared.Filter) ([]billing.Member, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var all []billing.Member
	for _, m := range r.members {
		if filter.Search == "" || strings.Contains(m.Name, filter.Search) {
			all = append(all, m)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all, int64(len(all)), nil
}

func (r *fakeMemberRepository) FindByIDs(_ context.Context, ids []uuid.UUID) ([]billing.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var found []billing.Member
	for _, id := range ids {
		if m, ok := r.members[id]; ok {
			found = append(found, m)
		}
	}
	return found, nil
}

// fakeInvoiceRepository is an in-memory InvoiceRepository. It enforces the
// (member, period) uniqueness constraint and version-checked saves the way
// the real store does, so the services exercise the same error paths.
type fakeInvoiceRepository struct {
	mu       sync.RWMutex
	invoices map[uuid.UUID]billing.Invoice

	// failCreateFor forces Create to fail for the given member
	failCreateFor map[uuid.UUID]error
	// conflictNextSaves makes the next N SaveWithLock calls fail with a
	// concurrency conflict
	conflictNextSaves int
}

func newFakeInvoiceRepository(invoices ...*billing.Invoice) *fakeInvoiceRepository {
	repo := &fakeInvoiceRepository{
		invoices:      make(map[uuid.UUID]billing.Invoice),
		failCreateFor: make(map[uuid.UUID]error),
	}
	for _, inv := range invoices {
		repo.invoices[inv.ID] = *inv
	}
	return repo
}

func (r *fakeInvoiceRepository) FindByID(_ context.Context, id uuid.UUID) (*billing.Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inv, ok := r.invoices[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &inv, nil
}

func (r *fakeInvoiceRepository) FindByMemberAndPeriod(_ context.Context, memberID uuid.UUID, period billing.Period) (*billing.Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, inv := range r.invoices {
		if inv.MemberID == memberID && inv.Period == period {
			found := inv
			return &found, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeInvoiceRepository) FindByMemberAndPeriods(_ context.Context, memberID uuid.UUID, periods []billing.Period) ([]billing.Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	want := make(map[billing.Period]struct{}, len(periods))
	for _, p := range periods {
		want[p] = struct{}{}
	}
	var found []billing.Invoice
	for _, inv := range r.invoices {
		if inv.MemberID != memberID {
			continue
		}
		if _, ok := want[inv.Period]; ok {
			found = append(found, inv)
		}
	}
	billing.SortOutstanding(found)
	return found, nil
}

func (r *fakeInvoiceRepository) FindOutstandingByMember(_ context.Context, memberID uuid.UUID) ([]billing.Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var open []billing.Invoice
	for _, inv := range r.invoices {
		if inv.MemberID == memberID && inv.Status.CanApplyPayment() {
			open = append(open, inv)
		}
	}
	billing.SortOutstanding(open)
	return open, nil
}

func (r *fakeInvoiceRepository) FindAllOutstanding(_ context.Context) ([]billing.Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var open []billing.Invoice
	for _, inv := range r.invoices {
		if inv.Status.CanApplyPayment() {
			open = append(open, inv)
		}
	}
	billing.SortOutstanding(open)
	return open, nil
}

func (r *fakeInvoiceRepository) FindByMember(_ context.Context, memberID uuid.UUID, _ shared.Filter) ([]billing.Invoice, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var found []billing.Invoice
	for _, inv := range r.invoices {
		if inv.MemberID == memberID {
			found = append(found, inv)
		}
	}
	billing.SortOutstanding(found)
	return found, int64(len(found)), nil
}

func (r *fakeInvoiceRepository) ExistsForPeriod(_ context.Context, memberID uuid.UUID, period billing.Period) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, inv := range r.invoices {
		if inv.MemberID == memberID && inv.Period == period {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeInvoiceRepository) Create(_ context.Context, invoice *billing.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.failCreateFor[invoice.MemberID]; ok {
		return err
	}
	for _, existing := range r.invoices {
		if existing.MemberID == invoice.MemberID && existing.Period == invoice.Period {
			return shared.ErrAlreadyExists
		}
	}
	r.invoices[invoice.ID] = *invoice
	return nil
}

func (r *fakeInvoiceRepository) SaveWithLock(_ context.Context, invoice *billing.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflictNextSaves > 0 {
		r.conflictNextSaves--
		return shared.ErrConcurrencyConflict
	}
	stored, ok := r.invoices[invoice.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if stored.Version != invoice.Version-1 {
		return shared.ErrConcurrencyConflict
	}
	r.invoices[invoice.ID] = *invoice
	return nil
}

func (r *fakeInvoiceRepository) get(id uuid.UUID) billing.Invoice {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.invoices[id]
}

// fakePaymentRepository is an in-memory PaymentRepository
type fakePaymentRepository struct {
	mu       sync.RWMutex
	payments []billing.Payment
}

func newFakePaymentRepository() *fakePaymentRepository {
	return &fakePaymentRepository{}
}

func (r *fakePaymentRepository) Create(_ context.Context, payment *billing.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payments = append(r.payments, *payment)
	return nil
}

func (r *fakePaymentRepository) CreateBatch(_ context.Context, payments []*billing.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range payments {
		r.payments = append(r.payments, *p)
	}
	return nil
}

func (r *fakePaymentRepository) FindByInvoice(_ context.Context, invoiceID uuid.UUID) ([]billing.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var found []billing.Payment
	for _, p := range r.payments {
		if p.InvoiceID == invoiceID {
			found = append(found, p)
		}
	}
	return found, nil
}

func (r *fakePaymentRepository) FindByMember(_ context.Context, memberID uuid.UUID, _ shared.Filter) ([]billing.Payment, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var found []billing.Payment
	for _, p := range r.payments {
		if p.MemberID == memberID {
			found = append(found, p)
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].PaidAt.After(found[j].PaidAt) })
	return found, int64(len(found)), nil
}

func (r *fakePaymentRepository) FindByReceiptNo(_ context.Context, receiptNo string) ([]billing.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var found []billing.Payment
	for _, p := range r.payments {
		if p.ReceiptNo == receiptNo {
			found = append(found, p)
		}
	}
	return found, nil
}

func (r *fakePaymentRepository) all() []billing.Payment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]billing.Payment, len(r.payments))
	copy(out, r.payments)
	return out
}

// fakeReceiptNumbers mints sequential receipt numbers
type fakeReceiptNumbers struct {
	mu   sync.Mutex
	next int
}

func newFakeReceiptNumbers() *fakeReceiptNumbers {
	return &fakeReceiptNumbers{}
}

func (g *fakeReceiptNumbers) Next(_ context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("SND-2025-%06d", g.next), nil
}

// fakeIdempotencyStore remembers processed keys in memory
type fakeIdempotencyStore struct {
	mu   sync.Mutex
	seen map[string]struct{}
	err  error
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{seen: make(map[string]struct{})}
}

func (s *fakeIdempotencyStore) MarkProcessed(_ context.Context, key string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	if _, ok := s.seen[key]; ok {
		return false, nil
	}
	s.seen[key] = struct{}{}
	return true, nil
}

func (s *fakeIdempotencyStore) IsProcessed(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	_, ok := s.seen[key]
	return ok, nil
}

func (s *fakeIdempotencyStore) Close() error { return nil }
