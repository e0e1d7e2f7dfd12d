package postgres

import (
	"context"

	"github.com/iho/pointledger/internal/infrastructure/postgres/generated"
	"github.com/iho/pointledger/internal/usecase"
)

// AdvisoryLocker implements usecase.Locker with transaction-scoped advisory locks.
// Keys are hashed to 64 bits by hashtextextended; the lock is released at commit or rollback.
type AdvisoryLocker struct{}

// NewAdvisoryLocker creates a new AdvisoryLocker.
func NewAdvisoryLocker() *AdvisoryLocker {
	return &AdvisoryLocker{}
}

// Lock blocks until the lock for key is held by tx.
func (l *AdvisoryLocker) Lock(ctx context.Context, tx usecase.Transaction, key string) error {
	queries := generated.New(tx.(*Tx).PgxTx())

	if err := queries.AcquireXactLock(ctx, key); err != nil {
		return mapError("advisory lock", err)
	}

	return nil
}
