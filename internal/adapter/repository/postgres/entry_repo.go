package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/pointledger/internal/domain"
	"github.com/iho/pointledger/internal/infrastructure/postgres/generated"
	"github.com/iho/pointledger/internal/usecase"
)

// EntryRepository implements usecase.EntryRepository.
type EntryRepository struct {
	queries *generated.Queries
}

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(pool *pgxpool.Pool) *EntryRepository {
	return newEntryRepositoryWithDB(pool)
}

func newEntryRepositoryWithDB(db generated.DBTX) *EntryRepository {
	return &EntryRepository{
		queries: generated.New(db),
	}
}

// queriesFor runs inside tx when one is given and on the pool otherwise.
func (r *EntryRepository) queriesFor(tx usecase.Transaction) *generated.Queries {
	if tx == nil {
		return r.queries
	}
	return generated.New(tx.(*Tx).PgxTx())
}

// Append inserts an entry and fills in its ID and CreatedAt.
func (r *EntryRepository) Append(ctx context.Context, tx usecase.Transaction, entry *domain.Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	row, err := r.queriesFor(tx).CreateEntry(ctx, generated.CreateEntryParams{
		UserID:         entry.UserID,
		Kind:           string(entry.Kind),
		Operation:      string(entry.Operation),
		Amount:         entry.Amount,
		Reason:         entry.Reason,
		GroupID:        entry.GroupID,
		ReversalOf:     int64PtrToPgInt8(entry.ReversalOf),
		IdempotencyKey: stringToPgText(entry.IdempotencyKey),
		CreatedAt:      timeToPgTimestamptz(entry.CreatedAt),
	})
	if err != nil {
		return mapError("create entry", err)
	}

	entry.ID = row.ID
	entry.CreatedAt = row.CreatedAt.Time

	return nil
}

// GetByID retrieves an entry by ID.
func (r *EntryRepository) GetByID(ctx context.Context, id int64) (*domain.Entry, error) {
	row, err := r.queries.GetEntry(ctx, id)
	if err != nil {
		return nil, mapError("get entry", err)
	}

	return rowToEntry(row), nil
}

// GetByIDForUpdate retrieves an entry and row-locks it until tx ends.
func (r *EntryRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id int64) (*domain.Entry, error) {
	row, err := r.queriesFor(tx).GetEntryForUpdate(ctx, id)
	if err != nil {
		return nil, mapError("get entry for update", err)
	}

	return rowToEntry(row), nil
}

// FindReversalOf returns the entry reversing id, or nil when there is none.
func (r *EntryRepository) FindReversalOf(ctx context.Context, tx usecase.Transaction, id int64) (*domain.Entry, error) {
	row, err := r.queriesFor(tx).GetReversalOf(ctx, int64PtrToPgInt8(&id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError("get reversal", err)
	}

	return rowToEntry(row), nil
}

// FindPairedTransferIn returns the transfer_in sharing out's group.
func (r *EntryRepository) FindPairedTransferIn(ctx context.Context, tx usecase.Transaction, out *domain.Entry) (*domain.Entry, error) {
	row, err := r.queriesFor(tx).GetTransferInByGroup(ctx, out.GroupID)
	if err != nil {
		return nil, mapError("get paired transfer", err)
	}

	return rowToEntry(row), nil
}

// SumAmount sums the user's entries of kinds created in [since, until).
func (r *EntryRepository) SumAmount(ctx context.Context, tx usecase.Transaction, userID string, kinds []domain.Kind, since, until time.Time) (int64, error) {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}

	total, err := r.queriesFor(tx).SumEntryAmounts(ctx, generated.SumEntryAmountsParams{
		UserID:      userID,
		Kinds:       names,
		CreatedAt:   timeToPgTimestamptz(since),
		CreatedAt_2: timeToPgTimestamptz(until),
	})
	if err != nil {
		return 0, mapError("sum entries", err)
	}

	return total, nil
}

// Balance returns the signed sum of the user's entries.
func (r *EntryRepository) Balance(ctx context.Context, userID string) (int64, error) {
	balance, err := r.queries.GetUserBalance(ctx, userID)
	if err != nil {
		return 0, mapError("get balance", err)
	}

	return balance, nil
}

// ListByUser returns a page of the user's entries, newest first.
func (r *EntryRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Entry, error) {
	rows, err := r.queries.ListEntriesByUser(ctx, generated.ListEntriesByUserParams{
		UserID: userID,
		Limit:  int32(limit),
		Offset: int32(offset),
	})
	if err != nil {
		return nil, mapError("list entries", err)
	}

	return rowsToEntries(rows), nil
}

// FindByIdempotencyKey returns the entries carrying key in id order.
func (r *EntryRepository) FindByIdempotencyKey(ctx context.Context, tx usecase.Transaction, key string) ([]*domain.Entry, error) {
	rows, err := r.queriesFor(tx).ListEntriesByIdempotencyKey(ctx, stringToPgText(key))
	if err != nil {
		return nil, mapError("list entries by idempotency key", err)
	}

	return rowsToEntries(rows), nil
}
