package postgres

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/iho/pointledger/internal/domain"
	"github.com/iho/pointledger/internal/infrastructure/postgres/generated"
)

// PostgreSQL error codes and constraint names the adapter translates.
const (
	pgErrUniqueViolation = "23505"

	reversalOfConstraint = "entries_reversal_of_key"
)

// mapError translates driver errors into domain outcomes.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrEntryNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation && pgErr.ConstraintName == reversalOfConstraint {
		return domain.ErrAlreadyReversed
	}

	return domain.NewStorageError(op, err)
}

// Type conversion helpers.
func timeToPgTimestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func int64PtrToPgInt8(v *int64) pgtype.Int8 {
	if v == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *v, Valid: true}
}

func stringToPgText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func rowToEntry(row generated.Entry) *domain.Entry {
	entry := &domain.Entry{
		ID:        row.ID,
		UserID:    row.UserID,
		Kind:      domain.Kind(row.Kind),
		Operation: domain.Operation(row.Operation),
		Amount:    row.Amount,
		Reason:    row.Reason,
		GroupID:   row.GroupID,
		CreatedAt: row.CreatedAt.Time,
	}
	if row.ReversalOf.Valid {
		v := row.ReversalOf.Int64
		entry.ReversalOf = &v
	}
	if row.IdempotencyKey.Valid {
		entry.IdempotencyKey = row.IdempotencyKey.String
	}
	return entry
}

func rowsToEntries(rows []generated.Entry) []*domain.Entry {
	entries := make([]*domain.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, rowToEntry(row))
	}
	return entries
}
