package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/iho/pointledger/internal/adapter/repository/postgres"
	"github.com/iho/pointledger/internal/domain"
	infra "github.com/iho/pointledger/internal/infrastructure/postgres"
	"github.com/iho/pointledger/internal/usecase"
)

// TestDB provides isolated test database connections.
type TestDB struct {
	Pool *pgxpool.Pool
	URL  string
	t    *testing.T
}

// NewTestDB connects to DATABASE_URL and applies migrations. The test is
// skipped when -short is set or DATABASE_URL is empty.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set")
	}

	if err := infra.RunMigrations(dbURL, migrationsPath()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := infra.NewPoolWithConfig(ctx, infra.PoolConfig{DatabaseURL: dbURL, MaxConns: 50})
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	db := &TestDB{Pool: pool, URL: dbURL, t: t}
	t.Cleanup(db.Cleanup)
	db.TruncateAll(context.Background())

	return db
}

// migrationsPath walks up from the working directory to the repo's migrations folder.
func migrationsPath() string {
	dir, err := os.Getwd()
	if err != nil {
		return "migrations"
	}
	for {
		candidate := filepath.Join(dir, "migrations")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "migrations"
		}
		dir = parent
	}
}

// Cleanup closes the database connection.
func (db *TestDB) Cleanup() {
	db.Pool.Close()
}

// TruncateAll removes all data from tables. TRUNCATE bypasses the
// append-only row trigger on entries.
func (db *TestDB) TruncateAll(ctx context.Context) {
	db.t.Helper()

	_, err := db.Pool.Exec(ctx, `TRUNCATE TABLE entries, outbox_events RESTART IDENTITY CASCADE`)
	if err != nil {
		db.t.Fatalf("failed to truncate tables: %v", err)
	}
}

// Ledger bundles the use cases wired against a real database.
type Ledger struct {
	Points   *usecase.PointsUseCase
	Reversal *usecase.ReversalUseCase
	Balances *usecase.BalanceUseCase
	Entries  *postgres.EntryRepository
	Outbox   *postgres.OutboxRepository
	Check    *usecase.LedgerUseCase
}

// LedgerOption adjusts the use cases built by NewLedger.
type LedgerOption func(*ledgerOptions)

type ledgerOptions struct {
	limits         domain.Limits
	limitReversals bool
	mode           usecase.IdempotencyMode
}

// WithLimits overrides the default 1000-per-day ceilings.
func WithLimits(l domain.Limits) LedgerOption {
	return func(o *ledgerOptions) { o.limits = l }
}

// WithLimitReversals makes reversals count against the daily limits.
func WithLimitReversals() LedgerOption {
	return func(o *ledgerOptions) { o.limitReversals = true }
}

// WithIdempotencyMode sets how repeated keys are handled.
func WithIdempotencyMode(mode usecase.IdempotencyMode) LedgerOption {
	return func(o *ledgerOptions) { o.mode = mode }
}

// DefaultLimits returns the stock ceilings.
func DefaultLimits() domain.Limits {
	return domain.Limits{Earn: 1000, Spend: 1000, Transfer: 1000, TransferScope: domain.TransferScopeSeparate}
}

// NewLedger wires the use cases the way cmd/server does, with retries enabled.
func (db *TestDB) NewLedger(opts ...LedgerOption) *Ledger {
	o := ledgerOptions{limits: DefaultLimits(), mode: usecase.IdempotencyEnforce}
	for _, opt := range opts {
		opt(&o)
	}

	entryRepo := postgres.NewEntryRepository(db.Pool)
	outboxRepo := postgres.NewOutboxRepository(db.Pool)
	txManager := postgres.NewTxManager(db.Pool)
	locker := postgres.NewAdvisoryLocker()
	idGen := postgres.NewULIDGenerator()
	retrier := postgres.NewRetrier().WithLogger(zerolog.Nop())

	balances := usecase.NewBalanceUseCase(entryRepo, o.limits, time.UTC)
	guard := usecase.NewLimitGuard(balances, locker, o.limits, usecase.SystemClock{})

	return &Ledger{
		Points: usecase.NewPointsUseCase(txManager, entryRepo, outboxRepo, locker, guard, idGen).
			WithRetrier(retrier).
			WithLogger(zerolog.Nop()).
			WithIdempotencyMode(o.mode),
		Reversal: usecase.NewReversalUseCase(txManager, entryRepo, outboxRepo, locker, guard, idGen).
			WithRetrier(retrier).
			WithLogger(zerolog.Nop()).
			WithIdempotencyMode(o.mode).
			WithLimitReversals(o.limitReversals),
		Balances: balances,
		Entries:  entryRepo,
		Outbox:   outboxRepo,
		Check:    usecase.NewLedgerUseCase(postgres.NewLedgerRepository(db.Pool)),
	}
}
