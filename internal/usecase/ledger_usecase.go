package usecase

import (
	"context"
	"errors"

	"github.com/iho/pointledger/internal/domain"
)

var (
	// ErrInconsistentLedger is returned when transfer legs do not pair up.
	ErrInconsistentLedger = errors.New("ledger is inconsistent: transfer legs do not balance")
)

// ConsistencyReport summarizes a ledger integrity check.
type ConsistencyReport struct {
	Consistent bool
	Totals     domain.ConsistencyTotals
}

// LedgerUseCase handles ledger-wide operations.
type LedgerUseCase struct {
	ledgerRepo LedgerRepository
}

// NewLedgerUseCase creates a new LedgerUseCase.
func NewLedgerUseCase(ledgerRepo LedgerRepository) *LedgerUseCase {
	return &LedgerUseCase{
		ledgerRepo: ledgerRepo,
	}
}

// CheckConsistency verifies that every transfer group carries both legs and
// that points moved out equal points moved in. Earn and spend entries create
// and destroy points, so only transfers are expected to net to zero.
func (uc *LedgerUseCase) CheckConsistency(ctx context.Context) (*ConsistencyReport, error) {
	totals, err := uc.ledgerRepo.CheckConsistency(ctx)
	if err != nil {
		return nil, domain.NewStorageError("check consistency", err)
	}

	report := &ConsistencyReport{
		Consistent: totals.TransferOut == totals.TransferIn && totals.UnpairedGroups == 0,
		Totals:     totals,
	}
	if !report.Consistent {
		return report, ErrInconsistentLedger
	}
	return report, nil
}
