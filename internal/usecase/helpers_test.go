package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iho/pointledger/internal/domain"
	"github.com/iho/pointledger/internal/usecase"
	"github.com/iho/pointledger/internal/usecase/mocks"
)

var testNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

func testLimits() domain.Limits {
	return domain.Limits{
		Earn:          1000,
		Spend:         1000,
		Transfer:      1000,
		TransferScope: domain.TransferScopeSeparate,
	}
}

type fixture struct {
	ledger    *mocks.Ledger
	outbox    *mocks.Outbox
	clock     *mocks.Clock
	balances  *usecase.BalanceUseCase
	guard     *usecase.LimitGuard
	points    *usecase.PointsUseCase
	reversals *usecase.ReversalUseCase
}

func newFixture(t *testing.T, limits domain.Limits) *fixture {
	return newFixtureIn(t, limits, time.UTC)
}

func newFixtureIn(t *testing.T, limits domain.Limits, loc *time.Location) *fixture {
	t.Helper()

	ledger := mocks.NewLedger()
	outbox := ledger.Outbox()
	clock := mocks.NewClock(testNow)
	idGen := mocks.NewSequenceIDGenerator("grp")

	balances := usecase.NewBalanceUseCase(ledger, limits, loc)
	guard := usecase.NewLimitGuard(balances, ledger, limits, clock)

	return &fixture{
		ledger:   ledger,
		outbox:   outbox,
		clock:    clock,
		balances: balances,
		guard:    guard,
		points: usecase.NewPointsUseCase(ledger, ledger, outbox, ledger, guard, idGen).
			WithClock(clock),
		reversals: usecase.NewReversalUseCase(ledger, ledger, outbox, ledger, guard, idGen).
			WithClock(clock),
	}
}

func (f *fixture) earn(t *testing.T, userID string, amount int64) *domain.Entry {
	t.Helper()
	res, err := f.points.Earn(context.Background(), usecase.EntryInput{UserID: userID, Amount: amount, Reason: "test"})
	require.NoError(t, err)
	return res.Entry
}

func (f *fixture) spend(t *testing.T, userID string, amount int64) *domain.Entry {
	t.Helper()
	res, err := f.points.Spend(context.Background(), usecase.EntryInput{UserID: userID, Amount: amount, Reason: "test"})
	require.NoError(t, err)
	return res.Entry
}

func (f *fixture) transfer(t *testing.T, from, to string, amount int64) *usecase.TransferResult {
	t.Helper()
	res, err := f.points.Transfer(context.Background(), usecase.TransferInput{FromUserID: from, ToUserID: to, Amount: amount, Reason: "gift"})
	require.NoError(t, err)
	return res
}

func (f *fixture) balance(t *testing.T, userID string) int64 {
	t.Helper()
	b, err := f.balances.Balance(context.Background(), userID)
	require.NoError(t, err)
	return b
}

// commitRaw appends entries directly, bypassing the use cases.
func (f *fixture) commitRaw(t *testing.T, entries ...*domain.Entry) {
	t.Helper()
	ctx := context.Background()
	tx, err := f.ledger.Begin(ctx)
	require.NoError(t, err)
	for _, e := range entries {
		require.NoError(t, f.ledger.Append(ctx, tx, e))
	}
	require.NoError(t, tx.Commit(ctx))
}
