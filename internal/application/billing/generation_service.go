package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/masjid/backend/internal/domain/billing"
	"github.com/masjid/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// DueDatePolicy controls which end of the billing period anchors an
// invoice's due date
type DueDatePolicy string

const (
	// DueDatePeriodStart anchors the due date at the first day of the period
	DueDatePeriodStart DueDatePolicy = "PERIOD_START"
	// DueDatePeriodEnd anchors the due date at the last day of the period
	// (frequency-aware: a quarterly member's period spans three months)
	DueDatePeriodEnd DueDatePolicy = "PERIOD_END"
)

// IsValid checks if the policy is valid
func (p DueDatePolicy) IsValid() bool {
	return p == DueDatePeriodStart || p == DueDatePeriodEnd
}

// GenerationConfig holds invoice generation policy
type GenerationConfig struct {
	DueDatePolicy     DueDatePolicy
	DueDateOffsetDays int
}

// DefaultGenerationConfig returns the default generation policy
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		DueDatePolicy:     DueDatePeriodStart,
		DueDateOffsetDays: 0,
	}
}

// GenerationError records one member whose invoice could not be created
type GenerationError struct {
	MemberID uuid.UUID `json:"member_id"`
	Reason   string    `json:"reason"`
}

// GenerationResult reports the outcome of one generation run. A run is
// idempotent: members who already hold an invoice for the period are
// counted as skipped, and a second run for the same period generates
// nothing.
type GenerationResult struct {
	Period    billing.Period    `json:"period"`
	Generated int               `json:"generated"`
	Skipped   int               `json:"skipped"`
	Errors    []GenerationError `json:"errors"`
}

// InvoiceGenerationService creates invoices for a billing period
type InvoiceGenerationService struct {
	members  billing.MemberRepository
	invoices billing.InvoiceRepository
	events   shared.EventPublisher
	cfg      GenerationConfig
	logger   *zap.Logger
}

// InvoiceGenerationServiceOption is a functional option for configuring
// the service
type InvoiceGenerationServiceOption func(*InvoiceGenerationService)

// WithGenerationEventPublisher publishes an InvoicesGeneratedEvent after
// each completed run
func WithGenerationEventPublisher(publisher shared.EventPublisher) InvoiceGenerationServiceOption {
	return func(s *InvoiceGenerationService) {
		s.events = publisher
	}
}

// NewInvoiceGenerationService creates a new InvoiceGenerationService
func NewInvoiceGenerationService(
	members billing.MemberRepository,
	invoices billing.InvoiceRepository,
	cfg GenerationConfig,
	logger *zap.Logger,
	opts ...InvoiceGenerationServiceOption,
) *InvoiceGenerationService {
	if !cfg.DueDatePolicy.IsValid() {
		cfg.DueDatePolicy = DueDatePeriodStart
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &InvoiceGenerationService{
		members:  members,
		invoices: invoices,
		cfg:      cfg,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateForPeriod creates exactly one invoice per eligible active member
// for the target period. Members who already have an invoice for the
// period are skipped, which makes the operation idempotent. A failure for
// one member is recorded and does not abort the batch. Cancelling the
// context stops the run between members; invoices already created stay
// committed and the partial result is returned alongside the context
// error.
func (s *InvoiceGenerationService) GenerateForPeriod(ctx context.Context, period billing.Period) (*GenerationResult, error) {
	if !period.IsValid() {
		return nil, billing.ErrInvalidPeriod
	}

	members, err := s.members.FindActive(ctx)
	if err != nil {
		return nil, err
	}

	result := &GenerationResult{
		Period: period,
		Errors: make([]GenerationError, 0),
	}

	for i := range members {
		if ctx.Err() != nil {
			s.logger.Warn("invoice generation cancelled mid-batch",
				zap.String("period", period.String()),
				zap.Int("generated", result.Generated))
			return result, ctx.Err()
		}

		member := &members[i]
		if !member.BillsInPeriod(period) {
			result.Skipped++
			continue
		}

		invoice, err := billing.NewInvoice(member.ID, period, member.AmountPerCycle, s.dueDate(member, period))
		if err != nil {
			result.Errors = append(result.Errors, GenerationError{MemberID: member.ID, Reason: err.Error()})
			s.logger.Warn("failed to build invoice",
				zap.String("member_id", member.ID.String()),
				zap.String("period", period.String()),
				zap.Error(err))
			continue
		}

		switch err := s.invoices.Create(ctx, invoice); {
		case err == nil:
			result.Generated++
		case errors.Is(err, shared.ErrAlreadyExists):
			// Another run (or a concurrent one) already created this
			// invoice; the uniqueness constraint makes that a skip.
			result.Skipped++
		default:
			result.Errors = append(result.Errors, GenerationError{MemberID: member.ID, Reason: err.Error()})
			s.logger.Error("failed to create invoice",
				zap.String("member_id", member.ID.String()),
				zap.String("period", period.String()),
				zap.Error(err))
		}
	}

	if s.events != nil {
		event := billing.NewInvoicesGeneratedEvent(period, result.Generated, result.Skipped)
		if err := s.events.Publish(ctx, event); err != nil {
			s.logger.Warn("failed to publish generation event", zap.Error(err))
		}
	}

	s.logger.Info("invoice generation completed",
		zap.String("period", period.String()),
		zap.Int("generated", result.Generated),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", len(result.Errors)))
	return result, nil
}

// dueDate derives an invoice due date from the period and the member's
// frequency according to the configured policy.
func (s *InvoiceGenerationService) dueDate(member *billing.Member, period billing.Period) time.Time {
	var base time.Time
	switch s.cfg.DueDatePolicy {
	case DueDatePeriodEnd:
		// Last day of the member's full billing cycle
		base = period.AddMonths(member.Frequency.Months()).Start().AddDate(0, 0, -1)
	default:
		base = period.Start()
	}
	return base.AddDate(0, 0, s.cfg.DueDateOffsetDays)
}
