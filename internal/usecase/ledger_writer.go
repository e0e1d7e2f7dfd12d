package usecase

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/pointledger/internal/domain"
	"github.com/iho/pointledger/internal/infrastructure/metrics"
)

// ledgerWriter holds what every mutating operation needs: a transaction, locks,
// the entry store, and the outbox. PointsUseCase and ReversalUseCase embed it.
type ledgerWriter struct {
	txManager  TransactionManager
	entryRepo  EntryRepository
	outboxRepo OutboxRepository
	locker     Locker
	guard      *LimitGuard
	idGen      IDGenerator
	clock      Clock
	retrier    Retrier
	metrics    *metrics.Metrics
	logger     zerolog.Logger
	idemMode   IdempotencyMode
}

func newLedgerWriter(
	txManager TransactionManager,
	entryRepo EntryRepository,
	outboxRepo OutboxRepository,
	locker Locker,
	guard *LimitGuard,
	idGen IDGenerator,
) ledgerWriter {
	return ledgerWriter{
		txManager:  txManager,
		entryRepo:  entryRepo,
		outboxRepo: outboxRepo,
		locker:     locker,
		guard:      guard,
		idGen:      idGen,
		clock:      SystemClock{},
		logger:     zerolog.Nop(),
		idemMode:   IdempotencyEnforce,
	}
}

// inTx runs fn in a single transaction bounded by DefaultTransactionTimeout.
// Nothing fn writes is visible unless it returns nil and the commit succeeds.
func (w *ledgerWriter) inTx(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error {
	attempt := func() error {
		txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
		defer cancel()

		tx, err := w.txManager.Begin(txCtx)
		if err != nil {
			return domain.NewStorageError("begin", err)
		}
		defer func() { _ = tx.Rollback(txCtx) }()

		if err := fn(txCtx, tx); err != nil {
			return err
		}

		if err := tx.Commit(txCtx); err != nil {
			return domain.NewStorageError("commit", err)
		}

		return nil
	}

	if w.retrier == nil {
		return attempt()
	}

	return w.retrier.Retry(ctx, attempt)
}

// replay serializes requests sharing key and returns the entries committed under it.
// It returns nil when the key is empty, unused, or idempotency is not enforced.
func (w *ledgerWriter) replay(ctx context.Context, tx Transaction, op domain.Operation, key string) ([]*domain.Entry, error) {
	if key == "" || w.idemMode != IdempotencyEnforce {
		return nil, nil
	}

	if err := w.locker.Lock(ctx, tx, lockPrefixIdempotency+":"+key); err != nil {
		return nil, domain.NewStorageError("lock idempotency key", err)
	}

	entries, err := w.entryRepo.FindByIdempotencyKey(ctx, tx, key)
	if err != nil {
		return nil, domain.NewStorageError("find by idempotency key", err)
	}

	if len(entries) == 0 {
		return nil, nil
	}

	if entries[0].Operation != op {
		return nil, domain.ErrIdempotencyConflict
	}

	if w.metrics != nil {
		w.metrics.IdempotentReplays.WithLabelValues(string(op)).Inc()
	}

	return entries, nil
}

// appendAll writes entries and one outbox event describing them.
func (w *ledgerWriter) appendAll(ctx context.Context, tx Transaction, op domain.Operation, entries ...*domain.Entry) error {
	for _, e := range entries {
		if err := w.entryRepo.Append(ctx, tx, e); err != nil {
			if errors.Is(err, domain.ErrAlreadyReversed) {
				return err
			}
			return domain.NewStorageError("append entry", err)
		}
	}

	if w.outboxRepo == nil {
		return nil
	}

	payloads := make([]map[string]any, len(entries))
	for i, e := range entries {
		payloads[i] = domain.EntryEventPayload(e)
	}

	aggregateType, aggregateID := domain.AggregateTypeEntry, strconv.FormatInt(entries[0].ID, 10)
	if len(entries) > 1 {
		aggregateType, aggregateID = domain.AggregateTypeGroup, entries[0].GroupID
	}

	event := &domain.OutboxEvent{
		ID:            w.idGen.Generate(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     domain.EventTypeFor(op),
		Payload: map[string]any{
			"operation": string(op),
			"group_id":  entries[0].GroupID,
			"entries":   payloads,
		},
		CreatedAt: entries[0].CreatedAt,
	}
	if err := w.outboxRepo.Create(ctx, tx, event); err != nil {
		return domain.NewStorageError("create outbox event", err)
	}

	return nil
}

// observe records the outcome of a committed or failed operation.
func (w *ledgerWriter) observe(op domain.Operation, start time.Time, err error, entries ...*domain.Entry) {
	if w.metrics == nil {
		return
	}

	w.metrics.OperationDuration.WithLabelValues(string(op)).Observe(time.Since(start).Seconds())

	if err != nil {
		w.metrics.OperationErrors.WithLabelValues(string(op), metrics.ErrorLabel(err)).Inc()
		return
	}

	for _, e := range entries {
		w.metrics.EntriesAppended.WithLabelValues(string(e.Kind)).Inc()
		w.metrics.PointsMoved.WithLabelValues(string(e.Kind)).Add(float64(e.Amount))
	}
}
