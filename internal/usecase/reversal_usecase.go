package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/pointledger/internal/domain"
	"github.com/iho/pointledger/internal/infrastructure/metrics"
)

// Reason prefixes of compensating entries.
const (
	ReversalReasonPrefix    = "reversal:"
	ReversalOutReasonPrefix = "reversal_out:"
	ReversalInReasonPrefix  = "reversal_in:"
)

// ReversalUseCase undoes a prior spend or transfer by appending compensating entries.
type ReversalUseCase struct {
	ledgerWriter
	limitReversals bool
}

// NewReversalUseCase creates a new ReversalUseCase.
func NewReversalUseCase(
	txManager TransactionManager,
	entryRepo EntryRepository,
	outboxRepo OutboxRepository,
	locker Locker,
	guard *LimitGuard,
	idGen IDGenerator,
) *ReversalUseCase {
	return &ReversalUseCase{
		ledgerWriter: newLedgerWriter(txManager, entryRepo, outboxRepo, locker, guard, idGen),
	}
}

// WithClock sets the clock used to timestamp entries.
func (uc *ReversalUseCase) WithClock(clock Clock) *ReversalUseCase {
	uc.clock = clock
	return uc
}

// WithRetrier retries whole transactions on serialization failures and deadlocks.
func (uc *ReversalUseCase) WithRetrier(r Retrier) *ReversalUseCase {
	uc.retrier = r
	return uc
}

// WithMetrics sets the metrics collector.
func (uc *ReversalUseCase) WithMetrics(m *metrics.Metrics) *ReversalUseCase {
	uc.metrics = m
	return uc
}

// WithLogger sets the logger.
func (uc *ReversalUseCase) WithLogger(logger zerolog.Logger) *ReversalUseCase {
	uc.logger = logger
	return uc
}

// WithIdempotencyMode sets how repeated idempotency keys are handled.
func (uc *ReversalUseCase) WithIdempotencyMode(mode IdempotencyMode) *ReversalUseCase {
	uc.idemMode = mode
	return uc
}

// WithLimitReversals makes compensating entries count against and be gated by daily limits.
func (uc *ReversalUseCase) WithLimitReversals(enabled bool) *ReversalUseCase {
	uc.limitReversals = enabled
	return uc
}

// ReverseInput represents input for reversing an entry.
type ReverseInput struct {
	Reason          string
	IdempotencyKey  string
	OriginalEntryID int64
}

// ReverseResult holds the reversed entry id and the compensating entries.
type ReverseResult struct {
	Entries         []*domain.Entry
	ReversedEntryID int64
	Replayed        bool
}

// Reverse appends the entries compensating the original entry in one transaction.
//
// A spend is undone by an earn of the same amount. A transfer_out is undone by an earn to
// the sender plus a spend from the recipient of the paired transfer_in. Earns, transfer_ins
// and entries that are themselves reversals cannot be reversed.
func (uc *ReversalUseCase) Reverse(ctx context.Context, input ReverseInput) (*ReverseResult, error) {
	if input.OriginalEntryID <= 0 {
		return nil, domain.ErrEntryNotFound
	}
	if err := domain.ValidateReason(input.Reason); err != nil {
		return nil, err
	}
	if err := domain.ValidateIdempotencyKey(input.IdempotencyKey); err != nil {
		return nil, err
	}

	start := time.Now()
	var result *ReverseResult

	err := uc.inTx(ctx, func(ctx context.Context, tx Transaction) error {
		prior, err := uc.replay(ctx, tx, domain.OperationReversal, input.IdempotencyKey)
		if err != nil {
			return err
		}
		if prior != nil {
			if prior[0].ReversalOf == nil || *prior[0].ReversalOf != input.OriginalEntryID {
				return domain.ErrIdempotencyConflict
			}
			result = &ReverseResult{ReversedEntryID: input.OriginalEntryID, Entries: prior, Replayed: true}
			return nil
		}

		original, err := uc.entryRepo.GetByIDForUpdate(ctx, tx, input.OriginalEntryID)
		if err != nil {
			return domain.NewStorageError("get entry for update", err)
		}

		if err := uc.ensureNotReversed(ctx, tx, original.ID); err != nil {
			return err
		}

		entries, err := uc.compensate(ctx, tx, original, input)
		if err != nil {
			return err
		}

		if uc.limitReversals {
			reqs := make([]LimitRequest, len(entries))
			for i, e := range entries {
				reqs[i] = LimitRequest{UserID: e.UserID, Kind: e.Kind, Amount: e.Amount}
			}
			if err := uc.guard.checkAt(ctx, tx, entries[0].CreatedAt, reqs...); err != nil {
				return err
			}
		}

		if err := uc.appendAll(ctx, tx, domain.OperationReversal, entries...); err != nil {
			return err
		}

		result = &ReverseResult{ReversedEntryID: original.ID, Entries: entries}
		return nil
	})
	if err != nil {
		uc.observe(domain.OperationReversal, start, err)
		if uc.metrics != nil {
			uc.metrics.ReversalFailures.WithLabelValues(metrics.ErrorLabel(err)).Inc()
		}
		uc.logger.Warn().Err(err).Int64("original_entry_id", input.OriginalEntryID).Msg("reversal rejected")
		return nil, err
	}

	if result.Replayed {
		uc.observe(domain.OperationReversal, start, nil)
	} else {
		uc.observe(domain.OperationReversal, start, nil, result.Entries...)
		if uc.metrics != nil {
			uc.metrics.Reversals.Inc()
		}
	}

	uc.logger.Info().
		Int64("original_entry_id", result.ReversedEntryID).
		Int("entries", len(result.Entries)).
		Bool("replayed", result.Replayed).
		Msg("entry reversed")

	return result, nil
}

func (uc *ReversalUseCase) ensureNotReversed(ctx context.Context, tx Transaction, id int64) error {
	existing, err := uc.entryRepo.FindReversalOf(ctx, tx, id)
	if err != nil {
		return domain.NewStorageError("find reversal", err)
	}
	if existing != nil {
		return domain.ErrAlreadyReversed
	}
	return nil
}

// compensate builds the entries undoing original without writing them.
func (uc *ReversalUseCase) compensate(ctx context.Context, tx Transaction, original *domain.Entry, input ReverseInput) ([]*domain.Entry, error) {
	if original.IsReversal() {
		return nil, domain.ErrUnsupportedReversal
	}

	now := uc.clock.Now()
	groupID := uc.idGen.Generate()

	newEntry := func(of *domain.Entry, kind domain.Kind, reason string) *domain.Entry {
		id := of.ID
		return &domain.Entry{
			UserID:         of.UserID,
			Kind:           kind,
			Operation:      domain.OperationReversal,
			Amount:         of.Amount,
			Reason:         reason,
			IdempotencyKey: input.IdempotencyKey,
			GroupID:        groupID,
			ReversalOf:     &id,
			CreatedAt:      now,
		}
	}

	switch original.Kind {
	case domain.KindSpend:
		return []*domain.Entry{
			newEntry(original, domain.KindEarn, ReversalReasonPrefix+input.Reason),
		}, nil

	case domain.KindTransferOut:
		peer, err := uc.entryRepo.FindPairedTransferIn(ctx, tx, original)
		if errors.Is(err, domain.ErrEntryNotFound) {
			return nil, domain.ErrPairNotFound
		}
		if err != nil {
			return nil, domain.NewStorageError("find paired transfer", err)
		}

		if err := uc.ensureNotReversed(ctx, tx, peer.ID); err != nil {
			return nil, err
		}

		return []*domain.Entry{
			newEntry(original, domain.KindEarn, ReversalOutReasonPrefix+input.Reason),
			newEntry(peer, domain.KindSpend, ReversalInReasonPrefix+input.Reason),
		}, nil

	default:
		return nil, domain.ErrUnsupportedReversal
	}
}
