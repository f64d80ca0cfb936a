package billing

import (
	"context"

	"github.com/masjid/backend/internal/domain/billing"
	"github.com/masjid/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// CollectionAuditHandler writes an audit log line for every committed
// collection and generation run. Treasurers reconcile cash drawers
// against these lines, so the handler records the receipt number and
// amounts rather than the raw aggregate state.
type CollectionAuditHandler struct {
	logger *zap.Logger
}

// NewCollectionAuditHandler creates a CollectionAuditHandler
func NewCollectionAuditHandler(logger *zap.Logger) *CollectionAuditHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CollectionAuditHandler{logger: logger}
}

// EventTypes returns the event types this handler subscribes to
func (h *CollectionAuditHandler) EventTypes() []string {
	return []string{billing.EventTypePaymentAllocated, billing.EventTypeInvoicesGenerated}
}

// Handle processes a billing event
func (h *CollectionAuditHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *billing.PaymentAllocatedEvent:
		h.logger.Info("audit: payment allocated",
			zap.String("member_id", e.MemberID.String()),
			zap.String("receipt_no", e.ReceiptNo),
			zap.String("method", string(e.Method)),
			zap.String("total_applied", e.TotalApplied.Amount().String()),
			zap.Int("invoices", len(e.InvoiceIDs)))
	case *billing.InvoicesGeneratedEvent:
		h.logger.Info("audit: invoices generated",
			zap.String("period", e.Period.String()),
			zap.Int("generated", e.Generated),
			zap.Int("skipped", e.Skipped))
	}
	return nil
}

var _ shared.EventHandler = (*CollectionAuditHandler)(nil)
