package billing

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/masjid/backend/internal/domain/billing"
	"github.com/masjid/backend/internal/domain/shared"
	"github.com/masjid/backend/internal/domain/shared/valueobject"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// AdvancePolicy controls what happens when a payment exceeds the member's
// total outstanding balance
type AdvancePolicy string

const (
	// AdvanceInformational reports the excess on the allocation result and
	// persists nothing for it. This is the safe default: no credit balance
	// is silently created.
	AdvanceInformational AdvancePolicy = "INFORMATIONAL"
	// AdvanceReject refuses allocations whose amount exceeds the total
	// outstanding balance
	AdvanceReject AdvancePolicy = "REJECT"
)

// IsValid checks if the policy is valid
func (p AdvancePolicy) IsValid() bool {
	return p == AdvanceInformational || p == AdvanceReject
}

// AllocationConfig holds payment allocation policy
type AllocationConfig struct {
	AdvancePolicy     AdvancePolicy
	RetryAttempts     int
	BulkMaxConcurrent int
	IdempotencyTTL    time.Duration
}

// DefaultAllocationConfig returns the default allocation policy
func DefaultAllocationConfig() AllocationConfig {
	return AllocationConfig{
		AdvancePolicy:     AdvanceInformational,
		RetryAttempts:     3,
		BulkMaxConcurrent: 4,
		IdempotencyTTL:    24 * time.Hour,
	}
}

// AllocationRequest is the input to a single-member allocation
type AllocationRequest struct {
	MemberID    uuid.UUID
	TotalAmount valueobject.Money
	Meta        billing.PaymentMeta
}

// AllocationLineResult reports one amount applied against one invoice
type AllocationLineResult struct {
	InvoiceID       uuid.UUID             `json:"invoice_id"`
	Period          billing.Period        `json:"period"`
	AmountApplied   valueobject.Money     `json:"amount_applied"`
	ResultingStatus billing.InvoiceStatus `json:"resulting_status"`
}

// AllocationOutcome reports the committed result of one allocation. All
// payments in the outcome share one receipt number, so the caller can
// render a single receipt for the whole collection.
type AllocationOutcome struct {
	MemberID         uuid.UUID              `json:"member_id"`
	MemberName       string                 `json:"member_name"`
	ReceiptNo        string                 `json:"receipt_no"`
	Allocations      []AllocationLineResult `json:"allocations"`
	TotalApplied     valueobject.Money      `json:"total_applied"`
	AdvanceRemainder valueobject.Money      `json:"advance_remainder"`
	PaidAt           time.Time              `json:"paid_at"`
}

// BulkSelection is one (member, period) cell from the payment matrix
type BulkSelection struct {
	MemberID uuid.UUID
	Period   billing.Period
}

// BulkFailure records one member batch that could not be collected
type BulkFailure struct {
	MemberID uuid.UUID        `json:"member_id"`
	Periods  []billing.Period `json:"periods"`
	Code     string           `json:"code"`
	Reason   string           `json:"reason"`
}

// BulkResult reports a bulk collection: per-member receipts for the
// batches that committed, and failures for the ones that did not. One
// member's failure never rolls back another member's success.
type BulkResult struct {
	Results  []AllocationOutcome `json:"results"`
	Failures []BulkFailure       `json:"failures"`
}

// PaymentAllocationService applies payments across members' outstanding
// invoices, oldest arrears first
type PaymentAllocationService struct {
	members     billing.MemberRepository
	scope       TransactionScope
	allocator   *billing.Allocator
	idempotency shared.IdempotencyStore
	events      shared.EventPublisher
	cfg         AllocationConfig
	logger      *zap.Logger
}

// PaymentAllocationServiceOption is a functional option for configuring
// the service
type PaymentAllocationServiceOption func(*PaymentAllocationService)

// WithIdempotencyStore enables duplicate-submission detection for bulk
// collections
func WithIdempotencyStore(store shared.IdempotencyStore) PaymentAllocationServiceOption {
	return func(s *PaymentAllocationService) {
		s.idempotency = store
	}
}

// WithEventPublisher publishes a PaymentAllocatedEvent after each
// committed allocation
func WithEventPublisher(publisher shared.EventPublisher) PaymentAllocationServiceOption {
	return func(s *PaymentAllocationService) {
		s.events = publisher
	}
}

// NewPaymentAllocationService creates a new PaymentAllocationService
func NewPaymentAllocationService(
	members billing.MemberRepository,
	scope TransactionScope,
	cfg AllocationConfig,
	logger *zap.Logger,
	opts ...PaymentAllocationServiceOption,
) *PaymentAllocationService {
	if !cfg.AdvancePolicy.IsValid() {
		cfg.AdvancePolicy = AdvanceInformational
	}
	if cfg.RetryAttempts < 0 {
		cfg.RetryAttempts = 0
	}
	if cfg.BulkMaxConcurrent < 1 {
		cfg.BulkMaxConcurrent = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &PaymentAllocationService{
		members:   members,
		scope:     scope,
		allocator: billing.NewAllocator(),
		cfg:       cfg,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Allocate distributes one payment across the member's outstanding
// invoices, oldest period first. The whole allocation commits atomically:
// every invoice update and payment record lands, or none do. A version
// conflict with a concurrent payment for the same member is retried a
// bounded number of times, then surfaced as a retryable CONTENTION error.
func (s *PaymentAllocationService) Allocate(ctx context.Context, req AllocationRequest) (*AllocationOutcome, error) {
	if !req.TotalAmount.IsPositive() {
		return nil, billing.ErrInvalidAmount
	}
	if err := req.Meta.Validate(); err != nil {
		return nil, err
	}

	member, err := s.members.FindByID(ctx, req.MemberID)
	if err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		outcome, err := s.allocateOnce(ctx, member, req.TotalAmount, req.Meta, nil)
		if err == nil {
			return outcome, nil
		}
		if !errors.Is(err, shared.ErrConcurrencyConflict) {
			return nil, err
		}
		if attempt >= s.cfg.RetryAttempts {
			s.logger.Warn("allocation contention retries exhausted",
				zap.String("member_id", req.MemberID.String()),
				zap.Int("attempts", attempt+1))
			return nil, billing.ErrContention
		}
	}
}

// allocateOnce runs one transactional allocation attempt. When restrictTo
// is non-empty the allocation is limited to exactly those periods (bulk
// collection) and amount may be zero, meaning "the sum of the selected
// balances".
func (s *PaymentAllocationService) allocateOnce(
	ctx context.Context,
	member *billing.Member,
	amount valueobject.Money,
	meta billing.PaymentMeta,
	restrictTo []billing.Period,
) (*AllocationOutcome, error) {
	var outcome *AllocationOutcome

	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var invoices []billing.Invoice
		var err error

		if len(restrictTo) == 0 {
			invoices, err = repos.Invoices().FindOutstandingByMember(ctx, member.ID)
			if err != nil {
				return err
			}
		} else {
			invoices, err = repos.Invoices().FindByMemberAndPeriods(ctx, member.ID, restrictTo)
			if err != nil {
				return err
			}
			// Every selected cell must still be collectible. A cell paid
			// by someone else a moment earlier makes the selection stale.
			if len(invoices) != len(restrictTo) {
				return billing.ErrStaleSelection
			}
			total := valueobject.Zero()
			for i := range invoices {
				if !invoices[i].Status.CanApplyPayment() || !invoices[i].Outstanding().IsPositive() {
					return billing.ErrStaleSelection
				}
				total = total.Add(invoices[i].Outstanding())
			}
			if amount.IsZero() {
				amount = total
			}
		}

		plan, err := s.allocator.Plan(amount, invoices)
		if err != nil {
			return err
		}
		if s.cfg.AdvancePolicy == AdvanceReject && plan.AdvanceRemainder.IsPositive() {
			return billing.ErrExceedsOutstanding
		}

		receiptNo, err := repos.ReceiptNumbers().Next(ctx)
		if err != nil {
			return err
		}

		byID := make(map[uuid.UUID]*billing.Invoice, len(invoices))
		for i := range invoices {
			byID[invoices[i].ID] = &invoices[i]
		}

		payments := make([]*billing.Payment, 0, len(plan.Lines))
		lines := make([]AllocationLineResult, 0, len(plan.Lines))
		for _, line := range plan.Lines {
			invoice := byID[line.InvoiceID]
			if err := invoice.ApplyPayment(line.Amount); err != nil {
				return err
			}
			if err := repos.Invoices().SaveWithLock(ctx, invoice); err != nil {
				return err
			}
			payment, err := billing.NewPayment(invoice.ID, member.ID, line.Amount, meta, receiptNo)
			if err != nil {
				return err
			}
			payments = append(payments, payment)
			lines = append(lines, AllocationLineResult{
				InvoiceID:       line.InvoiceID,
				Period:          line.Period,
				AmountApplied:   line.Amount,
				ResultingStatus: invoice.Status,
			})
		}

		if err := repos.Payments().CreateBatch(ctx, payments); err != nil {
			return err
		}

		outcome = &AllocationOutcome{
			MemberID:         member.ID,
			MemberName:       member.Name,
			ReceiptNo:        receiptNo,
			Allocations:      lines,
			TotalApplied:     plan.TotalApplied,
			AdvanceRemainder: plan.AdvanceRemainder,
			PaidAt:           time.Now(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.events != nil {
		invoiceIDs := make([]uuid.UUID, len(outcome.Allocations))
		for i, line := range outcome.Allocations {
			invoiceIDs[i] = line.InvoiceID
		}
		event := billing.NewPaymentAllocatedEvent(member.ID, outcome.ReceiptNo, meta.Method, outcome.TotalApplied, invoiceIDs)
		if err := s.events.Publish(ctx, event); err != nil {
			s.logger.Warn("failed to publish allocation event", zap.Error(err))
		}
	}

	s.logger.Info("payment allocated",
		zap.String("member_id", member.ID.String()),
		zap.String("receipt_no", outcome.ReceiptNo),
		zap.String("total_applied", outcome.TotalApplied.Amount().String()),
		zap.String("advance_remainder", outcome.AdvanceRemainder.Amount().String()))
	return outcome, nil
}

// BulkAllocate collects a payment-matrix submission: explicit (member,
// period) cells whose amounts are implicitly the invoices' remaining
// balances. Selections are grouped by member and each member's batch is
// one independent allocation producing one receipt; batches run with
// bounded concurrency and one member's failure never blocks the others.
// Cancelling the context stops scheduling new members; member batches
// already committed stay committed.
func (s *PaymentAllocationService) BulkAllocate(
	ctx context.Context,
	selections []BulkSelection,
	meta billing.PaymentMeta,
	idempotencyKey string,
) (*BulkResult, error) {
	if len(selections) == 0 {
		return nil, shared.ErrInvalidInput
	}
	if err := meta.Validate(); err != nil {
		return nil, err
	}

	if idempotencyKey != "" && s.idempotency != nil {
		fresh, err := s.idempotency.MarkProcessed(ctx, "bulk-collect:"+idempotencyKey, s.cfg.IdempotencyTTL)
		if err != nil {
			// The guard is best-effort: a broken store must not block
			// collections.
			s.logger.Warn("idempotency store unavailable, proceeding without duplicate check",
				zap.Error(err))
		} else if !fresh {
			return nil, billing.ErrDuplicateSubmission
		}
	}

	byMember := groupSelections(selections)

	var (
		mu     sync.Mutex
		result = &BulkResult{
			Results:  make([]AllocationOutcome, 0, len(byMember)),
			Failures: make([]BulkFailure, 0),
		}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.BulkMaxConcurrent)

	for memberID, periods := range byMember {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			outcome, err := s.collectMemberBatch(gctx, memberID, periods, meta)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failures = append(result.Failures, BulkFailure{
					MemberID: memberID,
					Periods:  periods,
					Code:     errorCode(err),
					Reason:   err.Error(),
				})
				// Per-member failures are reported, never propagated: they
				// must not cancel the sibling batches.
				return nil
			}
			result.Results = append(result.Results, *outcome)
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(result.Results, func(i, j int) bool {
		return result.Results[i].MemberName < result.Results[j].MemberName
	})
	sort.Slice(result.Failures, func(i, j int) bool {
		return result.Failures[i].MemberID.String() < result.Failures[j].MemberID.String()
	})

	s.logger.Info("bulk collection completed",
		zap.Int("members", len(byMember)),
		zap.Int("collected", len(result.Results)),
		zap.Int("failed", len(result.Failures)))
	return result, nil
}

// collectMemberBatch allocates the sum of the selected invoices' balances
// for one member, with the same contention retry as Allocate.
func (s *PaymentAllocationService) collectMemberBatch(
	ctx context.Context,
	memberID uuid.UUID,
	periods []billing.Period,
	meta billing.PaymentMeta,
) (*AllocationOutcome, error) {
	member, err := s.members.FindByID(ctx, memberID)
	if err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		outcome, err := s.allocateOnce(ctx, member, valueobject.Zero(), meta, periods)
		if err == nil {
			return outcome, nil
		}
		if !errors.Is(err, shared.ErrConcurrencyConflict) {
			return nil, err
		}
		if attempt >= s.cfg.RetryAttempts {
			return nil, billing.ErrContention
		}
	}
}

// groupSelections groups matrix cells by member, deduplicating repeated
// cells and keeping each member's periods sorted oldest first.
func groupSelections(selections []BulkSelection) map[uuid.UUID][]billing.Period {
	seen := make(map[uuid.UUID]map[billing.Period]struct{})
	byMember := make(map[uuid.UUID][]billing.Period)
	for _, sel := range selections {
		if seen[sel.MemberID] == nil {
			seen[sel.MemberID] = make(map[billing.Period]struct{})
		}
		if _, dup := seen[sel.MemberID][sel.Period]; dup {
			continue
		}
		seen[sel.MemberID][sel.Period] = struct{}{}
		byMember[sel.MemberID] = append(byMember[sel.MemberID], sel.Period)
	}
	for _, periods := range byMember {
		sort.Slice(periods, func(i, j int) bool { return periods[i].Before(periods[j]) })
	}
	return byMember
}

// errorCode extracts the machine-readable code from a domain error
func errorCode(err error) string {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return "INTERNAL"
}
