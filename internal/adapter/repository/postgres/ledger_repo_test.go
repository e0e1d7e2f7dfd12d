package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v4"

	"github.com/iho/pointledger/internal/domain"
)

func TestLedgerRepositoryCheckConsistency(t *testing.T) {
	pool := newMockPool(t)
	repo := newLedgerRepositoryWithDB(pool)

	pool.ExpectQuery(regexp.QuoteMeta("AS unpaired_groups")).
		WillReturnRows(pgxmock.NewRows([]string{"transfer_out", "transfer_in", "unpaired_groups"}).
			AddRow(int64(120), int64(100), int64(1)))

	totals, err := repo.CheckConsistency(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := domain.ConsistencyTotals{TransferOut: 120, TransferIn: 100, UnpairedGroups: 1}
	if totals != want {
		t.Fatalf("expected %+v, got %+v", want, totals)
	}

	assertExpectations(t, pool)
}

func TestLedgerRepositoryCheckConsistencyError(t *testing.T) {
	pool := newMockPool(t)
	repo := newLedgerRepositoryWithDB(pool)

	pool.ExpectQuery(regexp.QuoteMeta("AS unpaired_groups")).
		WillReturnError(errors.New("statement timeout"))

	_, err := repo.CheckConsistency(context.Background())
	if !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
}
