package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/pointledger/internal/domain"
	"github.com/iho/pointledger/internal/usecase"
)

func TestLedgerUseCase_ConsistentAfterTransfersAndReversals(t *testing.T) {
	f := newFixture(t, testLimits())
	f.earn(t, "alice", 100)
	f.transfer(t, "alice", "bob", 30)
	moved := f.transfer(t, "bob", "carol", 10)

	_, err := f.reversals.Reverse(context.Background(), usecase.ReverseInput{
		OriginalEntryID: moved.Out.ID,
		Reason:          "mistake",
	})
	require.NoError(t, err)

	report, err := usecase.NewLedgerUseCase(f.ledger).CheckConsistency(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Consistent)
	assert.Equal(t, domain.ConsistencyTotals{TransferOut: 40, TransferIn: 40}, report.Totals)
}

func TestLedgerUseCase_DetectsOrphanLeg(t *testing.T) {
	f := newFixture(t, testLimits())
	f.transfer(t, "alice", "bob", 25)
	f.commitRaw(t, &domain.Entry{
		UserID:    "dave",
		Kind:      domain.KindTransferOut,
		Operation: domain.OperationTransfer,
		Amount:    5,
		GroupID:   "orphan",
		CreatedAt: testNow,
	})

	report, err := usecase.NewLedgerUseCase(f.ledger).CheckConsistency(context.Background())
	require.ErrorIs(t, err, usecase.ErrInconsistentLedger)
	require.NotNil(t, report)
	assert.False(t, report.Consistent)
	assert.Equal(t, int64(1), report.Totals.UnpairedGroups)
	assert.Equal(t, int64(30), report.Totals.TransferOut)
	assert.Equal(t, int64(25), report.Totals.TransferIn)
}
