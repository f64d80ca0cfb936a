package billing

import (
	"context"

	"github.com/masjid/backend/internal/domain/billing"
)

// TransactionScope provides transactional access to the billing
// repositories. When a function is executed within a transaction scope,
// all repository operations are part of the same database transaction and
// commit or roll back atomically. This is the boundary that keeps a
// payment allocation all-or-nothing: invoice balance updates, payment
// records and the receipt counter either all land or none do.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to the billing repositories
// within one transaction. All repositories returned share the same
// underlying database transaction.
type TransactionalRepositories interface {
	// Invoices returns the invoice repository scoped to the current transaction
	Invoices() billing.InvoiceRepository
	// Payments returns the payment repository scoped to the current transaction
	Payments() billing.PaymentRepository
	// ReceiptNumbers returns the receipt number generator scoped to the current transaction
	ReceiptNumbers() billing.ReceiptNumberGenerator
}

// NoOpTransactionScope is a transaction scope without real transactions,
// used in tests.
type NoOpTransactionScope struct {
	invoices billing.InvoiceRepository
	payments billing.PaymentRepository
	receipts billing.ReceiptNumberGenerator
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	invoices billing.InvoiceRepository,
	payments billing.PaymentRepository,
	receipts billing.ReceiptNumberGenerator,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		invoices: invoices,
		payments: payments,
		receipts: receipts,
	}
}

// Execute runs the function without a real transaction.
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// Invoices returns the invoice repository.
func (s *NoOpTransactionScope) Invoices() billing.InvoiceRepository {
	return s.invoices
}

// Payments returns the payment repository.
func (s *NoOpTransactionScope) Payments() billing.PaymentRepository {
	return s.payments
}

// ReceiptNumbers returns the receipt number generator.
func (s *NoOpTransactionScope) ReceiptNumbers() billing.ReceiptNumberGenerator {
	return s.receipts
}

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
