// Package store defines the persisted-ledger interfaces and provides the
// SQLite implementation plus a Parquet archive for scraped settlement
// report rows.
package store

import (
	"context"

	"mftransact/internal/domain"
)

// TransactionStore persists and retrieves ledger entries.
type TransactionStore interface {
	// SaveTransaction inserts a new ledger entry and assigns its ID.
	SaveTransaction(ctx context.Context, t *domain.Transaction) error

	// GetTransaction retrieves a single entry by its ID.
	GetTransaction(ctx context.Context, id int64) (*domain.Transaction, error)

	// UpdateTransaction persists changes to an existing entry.
	UpdateTransaction(ctx context.Context, t *domain.Transaction) error

	// ListByStatus returns all entries in any of the given statuses,
	// oldest first.
	ListByStatus(ctx context.Context, statuses ...domain.TransactionStatus) ([]domain.Transaction, error)

	// PendingReconciliation returns the entries the reconciliation engine
	// must examine: anything Placed, Redirected, or PaymentProvisional,
	// plus Completed recurring plans whose instalments may still arrive.
	// Ordered oldest first.
	PendingReconciliation(ctx context.Context) ([]domain.Transaction, error)

	// PriorCompletedPurchase returns the oldest completed Purchase entry for
	// the client and plan that carries a non-blank folio. First-match
	// semantics: when several qualify the earliest created wins. Returns
	// domain.ErrNoPriorHolding when none qualifies.
	PriorCompletedPurchase(ctx context.Context, clientID int64, planCode string) (*domain.Transaction, error)

	// RecurringTotalForMandate sums the amounts of the client's recurring
	// entries in active states that reference the given mandate.
	RecurringTotalForMandate(ctx context.Context, clientID int64, mandateID string) (float64, error)
}

// ReferenceStore records issued order references. The reference column is
// unique: a duplicate write conflicts with domain.ErrDuplicateRef instead of
// silently overwriting, which makes the reference the ledger's global
// idempotency key.
type ReferenceStore interface {
	// MaxCounter returns the highest daily counter already issued among
	// references that start with prefix (date + mode + client digits), or 0
	// when none exist.
	MaxCounter(ctx context.Context, prefix string) (int, error)

	// RecordRef persists a newly issued reference.
	RecordRef(ctx context.Context, ref string, clientID int64, mode domain.OrderMode) error
}

// AckStore persists order acknowledgements for audit. Acks are written
// unconditionally, including for vendor-rejected orders, and never updated.
type AckStore interface {
	// SaveAck inserts an acknowledgement record.
	SaveAck(ctx context.Context, ack *domain.OrderAck) error

	// AckByRef returns the acknowledgement for the given order reference.
	// References are unique per order call, so at most one row matches.
	AckByRef(ctx context.Context, orderRef string) (*domain.OrderAck, error)
}

// MandateStore persists vendor-registered mandates.
type MandateStore interface {
	// SaveMandate inserts or replaces a mandate by its vendor-assigned ID.
	SaveMandate(ctx context.Context, m *domain.Mandate) error

	// MandatesByStatus returns the client's mandates in any of the given
	// statuses, oldest first. The order is pinned so that first-fit
	// capacity selection is deterministic.
	MandatesByStatus(ctx context.Context, clientID int64, statuses ...domain.MandateStatus) ([]domain.Mandate, error)
}
