package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/pointledger/internal/domain"
	"github.com/iho/pointledger/internal/infrastructure/postgres/generated"
)

// LedgerRepository implements usecase.LedgerRepository.
type LedgerRepository struct {
	queries *generated.Queries
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return newLedgerRepositoryWithDB(pool)
}

func newLedgerRepositoryWithDB(db generated.DBTX) *LedgerRepository {
	return &LedgerRepository{queries: generated.New(db)}
}

// CheckConsistency totals both transfer legs and counts groups missing one.
func (r *LedgerRepository) CheckConsistency(ctx context.Context) (domain.ConsistencyTotals, error) {
	row, err := r.queries.CheckLedgerConsistency(ctx)
	if err != nil {
		return domain.ConsistencyTotals{}, mapError("check ledger consistency", err)
	}

	return domain.ConsistencyTotals{
		TransferOut:    row.TransferOut,
		TransferIn:     row.TransferIn,
		UnpairedGroups: row.UnpairedGroups,
	}, nil
}
