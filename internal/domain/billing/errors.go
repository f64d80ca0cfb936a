package billing

import "github.com/masjid/backend/internal/domain/shared"

// Domain errors for the billing engine
var (
	// ErrInvalidAmount rejects non-positive payment amounts before any mutation
	ErrInvalidAmount = shared.NewDomainError("INVALID_AMOUNT", "Payment amount must be positive")

	// ErrNoOutstandingInvoices is returned when allocation is requested for a
	// member with no unpaid or partially paid invoices
	ErrNoOutstandingInvoices = shared.NewDomainError("NO_OUTSTANDING_INVOICES", "Member has no outstanding invoices")

	// ErrDuplicateInvoice signals that an invoice already exists for the
	// (member, period) pair; generation treats it as a skip, not a failure
	ErrDuplicateInvoice = shared.NewDomainError("DUPLICATE_INVOICE", "Invoice already exists for this member and period")

	// ErrContention signals a lock or version conflict during concurrent
	// allocation; the operation is safe to retry
	ErrContention = shared.NewDomainError("CONTENTION", "Invoice set was modified concurrently, retry the operation")

	// ErrStaleSelection signals that a bulk selection refers to an invoice
	// that no longer has an outstanding balance
	ErrStaleSelection = shared.NewDomainError("STALE_SELECTION", "Selected invoice has no outstanding balance")

	// ErrExceedsOutstanding rejects payments above the total outstanding
	// balance when the advance policy forbids overpayment
	ErrExceedsOutstanding = shared.NewDomainError("EXCEEDS_OUTSTANDING", "Payment amount exceeds total outstanding balance")

	// ErrInvalidPeriod rejects malformed period strings
	ErrInvalidPeriod = shared.NewDomainError("INVALID_PERIOD", "Period must be formatted YYYY-MM")

	// ErrInvalidPeriodRange rejects ranges where the end precedes the start
	ErrInvalidPeriodRange = shared.NewDomainError("INVALID_PERIOD", "Period range end precedes start")

	// ErrDuplicateSubmission signals that a bulk collection with the same
	// idempotency key was already processed
	ErrDuplicateSubmission = shared.NewDomainError("DUPLICATE_SUBMISSION", "This collection was already submitted")
)
