package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/iho/pointledger/internal/domain"
	"github.com/iho/pointledger/internal/usecase"
	"github.com/iho/pointledger/internal/usecase/mocks"
)

func TestDayBounds(t *testing.T) {
	est := time.FixedZone("EST", -5*60*60)

	tests := []struct {
		name      string
		at        time.Time
		loc       *time.Location
		wantStart time.Time
	}{
		{
			name:      "utc midday",
			at:        time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
			loc:       time.UTC,
			wantStart: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "utc midnight belongs to the new day",
			at:        time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
			loc:       time.UTC,
			wantStart: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "utc instant on the previous local day",
			at:        time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC),
			loc:       est,
			wantStart: time.Date(2026, 3, 9, 0, 0, 0, 0, est),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := usecase.DayBounds(tt.at, tt.loc)
			assert.True(t, start.Equal(tt.wantStart), "start = %v, want %v", start, tt.wantStart)
			assert.True(t, end.Equal(tt.wantStart.AddDate(0, 0, 1)), "end = %v", end)
		})
	}
}

func TestBalanceUseCase_DailyTotal(t *testing.T) {
	f := newFixture(t, testLimits())
	f.earn(t, "alice", 30)
	f.earn(t, "alice", 20)
	f.spend(t, "alice", 5)
	f.earn(t, "bob", 7)

	f.clock.Advance(24 * time.Hour)
	f.earn(t, "alice", 100)

	ctx := context.Background()

	total, err := f.balances.DailyTotal(ctx, "alice", domain.KindEarn, testNow)
	require.NoError(t, err)
	assert.Equal(t, int64(50), total)

	total, err = f.balances.DailyTotal(ctx, "alice", domain.KindSpend, testNow)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)

	total, err = f.balances.DailyTotal(ctx, "alice", domain.KindEarn, testNow.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(100), total)

	_, err = f.balances.DailyTotal(ctx, "alice", domain.Kind("bonus"), testNow)
	require.ErrorIs(t, err, domain.ErrInvalidKind)
}

func TestBalanceUseCase_Balance(t *testing.T) {
	f := newFixture(t, testLimits())
	f.earn(t, "alice", 100)
	f.spend(t, "alice", 30)
	f.transfer(t, "alice", "bob", 20)

	assert.Equal(t, int64(50), f.balance(t, "alice"))
	assert.Equal(t, int64(20), f.balance(t, "bob"))
	assert.Equal(t, int64(0), f.balance(t, "nobody"))
}

func TestBalanceUseCase_History(t *testing.T) {
	f := newFixture(t, testLimits())
	for i := 1; i <= 5; i++ {
		f.earn(t, "alice", int64(i))
	}
	f.earn(t, "bob", 1)

	entries, err := f.balances.History(context.Background(), usecase.ListEntriesInput{UserID: "alice", Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(4), entries[0].Amount)
	assert.Equal(t, int64(3), entries[1].Amount)

	entries, err = f.balances.History(context.Background(), usecase.ListEntriesInput{UserID: "alice"})
	require.NoError(t, err)
	assert.Len(t, entries, 5)
}

func TestBalanceUseCase_GetEntry(t *testing.T) {
	f := newFixture(t, testLimits())
	entry := f.earn(t, "alice", 10)

	got, err := f.balances.GetEntry(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.UserID, got.UserID)

	_, err = f.balances.GetEntry(context.Background(), 404)
	require.ErrorIs(t, err, domain.ErrEntryNotFound)
}

func TestBalanceUseCase_StorageErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	entryRepo := mocks.NewMockEntryRepository(ctrl)
	entryRepo.EXPECT().Balance(gomock.Any(), "alice").Return(int64(0), errors.New("connection refused"))
	entryRepo.EXPECT().ListByUser(gomock.Any(), "alice", 20, 0).Return(nil, errors.New("connection refused"))

	uc := usecase.NewBalanceUseCase(entryRepo, testLimits(), nil)

	_, err := uc.Balance(context.Background(), "alice")
	require.ErrorIs(t, err, domain.ErrStorage)

	_, err = uc.History(context.Background(), usecase.ListEntriesInput{UserID: "alice"})
	require.ErrorIs(t, err, domain.ErrStorage)
}
