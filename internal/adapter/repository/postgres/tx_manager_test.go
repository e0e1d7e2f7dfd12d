package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
)

func TestTxManagerBeginsReadCommitted(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectBeginTx(ledgerTxOptions)
	pool.ExpectCommit()

	tx, err := newTxManagerWithPool(pool).Begin(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	assertExpectations(t, pool)
}

func TestTxManagerSetsLockTimeout(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectBeginTx(ledgerTxOptions)
	pool.ExpectExec(regexp.QuoteMeta("set_config('lock_timeout'")).
		WithArgs("1500ms").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	pool.ExpectRollback()

	manager := newTxManagerWithPool(pool).WithLockTimeout(1500 * time.Millisecond)
	tx, err := manager.Begin(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tx.Rollback(context.Background()); err != nil {
		t.Fatalf("rollback failed: %v", err)
	}

	assertExpectations(t, pool)
}

func TestTxManagerLockTimeoutFailureRollsBack(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectBeginTx(ledgerTxOptions)
	pool.ExpectExec(regexp.QuoteMeta("set_config")).WillReturnError(errors.New("conn busy"))
	pool.ExpectRollback()

	_, err := newTxManagerWithPool(pool).WithLockTimeout(time.Second).Begin(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}

	assertExpectations(t, pool)
}

func TestTxManagerBeginError(t *testing.T) {
	pool := newMockPool(t)
	beginErr := errors.New("too many connections")
	pool.ExpectBeginTx(ledgerTxOptions).WillReturnError(beginErr)

	tx, err := newTxManagerWithPool(pool).Begin(context.Background())
	if !errors.Is(err, beginErr) {
		t.Fatalf("expected begin error, got err=%v tx=%v", err, tx)
	}
}

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	pool, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgxmock pool: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func assertExpectations(t *testing.T, pool pgxmock.PgxPoolIface) {
	t.Helper()
	if err := pool.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations were not met: %v", err)
	}
}
