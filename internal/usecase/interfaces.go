package usecase

import (
	"context"
	"time"

	"github.com/iho/pointledger/internal/domain"
)

// EntryRepository defines data access for ledger entries. Writes only happen inside a Transaction.
type EntryRepository interface {
	Append(ctx context.Context, tx Transaction, entry *domain.Entry) error
	GetByID(ctx context.Context, id int64) (*domain.Entry, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id int64) (*domain.Entry, error)
	// FindReversalOf returns the entry compensating id, or nil when there is none.
	FindReversalOf(ctx context.Context, tx Transaction, id int64) (*domain.Entry, error)
	FindPairedTransferIn(ctx context.Context, tx Transaction, out *domain.Entry) (*domain.Entry, error)
	// SumAmount sums amounts of the user's entries of the given kinds created in [since, until).
	SumAmount(ctx context.Context, tx Transaction, userID string, kinds []domain.Kind, since, until time.Time) (int64, error)
	Balance(ctx context.Context, userID string) (int64, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Entry, error)
	FindByIdempotencyKey(ctx context.Context, tx Transaction, key string) ([]*domain.Entry, error)
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	DeletePublished(ctx context.Context, before time.Time) (int64, error)
}

// LedgerRepository computes ledger-wide integrity totals.
type LedgerRepository interface {
	CheckConsistency(ctx context.Context) (domain.ConsistencyTotals, error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// Locker takes exclusive locks that are released when tx commits or rolls back.
type Locker interface {
	Lock(ctx context.Context, tx Transaction, key string) error
}

// Retrier re-runs an operation on transient storage conflicts.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Release drops a key whose request did not complete successfully.
	Release(ctx context.Context, key string) error
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
