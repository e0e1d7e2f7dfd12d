package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/pointledger/internal/domain"
	"github.com/iho/pointledger/internal/infrastructure/metrics"
	"github.com/iho/pointledger/internal/usecase"
	"github.com/iho/pointledger/internal/usecase/mocks"
)

func TestOutboxCleanupDeletesOlderThanRetention(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	ledger := mocks.NewLedger()
	outbox := ledger.Outbox()
	ctx := context.Background()

	for i, age := range []time.Duration{10 * 24 * time.Hour, 8 * 24 * time.Hour, time.Hour} {
		tx, err := ledger.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, outbox.Create(ctx, tx, &domain.OutboxEvent{
			ID:        string(rune('a' + i)),
			EventType: domain.EventTypePointsEarned,
			CreatedAt: now.Add(-age),
		}))
		require.NoError(t, tx.Commit(ctx))
		require.NoError(t, outbox.MarkPublished(ctx, string(rune('a'+i)), now.Add(-age)))
	}

	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	job := NewOutboxCleanup(outbox, 7*24*time.Hour, m, zerolog.Nop())
	job.now = func() time.Time { return now }

	deleted, err := job.RunContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
	assert.Len(t, outbox.Events(), 1)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.OutboxPurged))
}

func TestOutboxCleanupReportsErrors(t *testing.T) {
	outbox := &failingOutbox{err: errors.New("connection refused")}
	job := NewOutboxCleanup(outbox, time.Hour, nil, zerolog.Nop())

	_, err := job.RunContext(context.Background())
	require.ErrorIs(t, err, outbox.err)

	// Run logs instead of returning.
	job.Run()
}

func TestSchedulerRejectsInvalidSpec(t *testing.T) {
	s := New(zerolog.Nop())

	require.Error(t, s.Add("cleanup", "not a schedule", func() {}))
	require.NoError(t, s.Add("cleanup", "@hourly", func() {}))
}

func TestSchedulerRunsJobs(t *testing.T) {
	s := New(zerolog.Nop())
	ran := make(chan struct{}, 1)

	require.NoError(t, s.Add("tick", "@every 1s", func() {
		select {
		case ran <- struct{}{}:
		default:
		}
	}))
	s.Start()
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}
}

func TestConsistencyCheckSetsGauge(t *testing.T) {
	ledger := mocks.NewLedger()
	ctx := context.Background()

	tx, err := ledger.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, ledger.Append(ctx, tx, &domain.Entry{UserID: "alice", Kind: domain.KindTransferOut, Amount: 5, GroupID: "g1"}))
	require.NoError(t, ledger.Append(ctx, tx, &domain.Entry{UserID: "bob", Kind: domain.KindTransferIn, Amount: 5, GroupID: "g1"}))
	require.NoError(t, tx.Commit(ctx))

	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	job := NewConsistencyCheck(usecase.NewLedgerUseCase(ledger), m, zerolog.Nop())

	job.Run()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LedgerConsistent))

	tx, err = ledger.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, ledger.Append(ctx, tx, &domain.Entry{UserID: "carol", Kind: domain.KindTransferOut, Amount: 3, GroupID: "g2"}))
	require.NoError(t, tx.Commit(ctx))

	job.Run()
	assert.Equal(t, float64(0), testutil.ToFloat64(m.LedgerConsistent))
}

func TestConsistencyCheckStorageErrorLeavesGauge(t *testing.T) {
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	m.LedgerConsistent.Set(1)

	job := NewConsistencyCheck(failingChecker{}, m, zerolog.Nop())
	job.Run()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.LedgerConsistent))
}

type failingChecker struct{}

func (failingChecker) CheckConsistency(context.Context) (*usecase.ConsistencyReport, error) {
	return nil, errors.New("connection refused")
}

type failingOutbox struct {
	mocks.Outbox
	err error
}

func (f *failingOutbox) DeletePublished(context.Context, time.Time) (int64, error) {
	return 0, f.err
}
