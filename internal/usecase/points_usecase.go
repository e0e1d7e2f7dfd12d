package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/pointledger/internal/domain"
	"github.com/iho/pointledger/internal/infrastructure/metrics"
)

// PointsUseCase handles earning, spending and transferring points.
type PointsUseCase struct {
	ledgerWriter
}

// NewPointsUseCase creates a new PointsUseCase.
func NewPointsUseCase(
	txManager TransactionManager,
	entryRepo EntryRepository,
	outboxRepo OutboxRepository,
	locker Locker,
	guard *LimitGuard,
	idGen IDGenerator,
) *PointsUseCase {
	return &PointsUseCase{
		ledgerWriter: newLedgerWriter(txManager, entryRepo, outboxRepo, locker, guard, idGen),
	}
}

// WithClock sets the clock used to timestamp entries.
func (uc *PointsUseCase) WithClock(clock Clock) *PointsUseCase {
	uc.clock = clock
	return uc
}

// WithRetrier retries whole transactions on serialization failures and deadlocks.
func (uc *PointsUseCase) WithRetrier(r Retrier) *PointsUseCase {
	uc.retrier = r
	return uc
}

// WithMetrics sets the metrics collector.
func (uc *PointsUseCase) WithMetrics(m *metrics.Metrics) *PointsUseCase {
	uc.metrics = m
	return uc
}

// WithLogger sets the logger.
func (uc *PointsUseCase) WithLogger(logger zerolog.Logger) *PointsUseCase {
	uc.logger = logger
	return uc
}

// WithIdempotencyMode sets how repeated idempotency keys are handled.
func (uc *PointsUseCase) WithIdempotencyMode(mode IdempotencyMode) *PointsUseCase {
	uc.idemMode = mode
	return uc
}

// EntryInput represents input for a single-entry operation.
type EntryInput struct {
	UserID         string
	Reason         string
	IdempotencyKey string
	Amount         int64
}

// EntryResult is the committed entry of an earn or spend.
type EntryResult struct {
	Entry    *domain.Entry
	Replayed bool
}

// TransferInput represents input for moving points between users.
type TransferInput struct {
	FromUserID     string
	ToUserID       string
	Reason         string
	IdempotencyKey string
	Amount         int64
}

// TransferResult holds both legs of a committed transfer.
type TransferResult struct {
	Out      *domain.Entry
	In       *domain.Entry
	Replayed bool
}

// Earn credits points to a user, subject to the daily earn limit.
func (uc *PointsUseCase) Earn(ctx context.Context, input EntryInput) (*EntryResult, error) {
	return uc.single(ctx, domain.OperationEarn, domain.KindEarn, input)
}

// Spend debits points from a user, subject to the daily spend limit.
// Balances are not checked and may go negative.
func (uc *PointsUseCase) Spend(ctx context.Context, input EntryInput) (*EntryResult, error) {
	return uc.single(ctx, domain.OperationSpend, domain.KindSpend, input)
}

func validateEntryInput(input EntryInput) error {
	if err := domain.ValidateUserID(input.UserID); err != nil {
		return err
	}
	if err := domain.ValidateAmount(input.Amount); err != nil {
		return err
	}
	if err := domain.ValidateReason(input.Reason); err != nil {
		return err
	}
	return domain.ValidateIdempotencyKey(input.IdempotencyKey)
}

func (uc *PointsUseCase) single(ctx context.Context, op domain.Operation, kind domain.Kind, input EntryInput) (*EntryResult, error) {
	if err := validateEntryInput(input); err != nil {
		return nil, err
	}

	start := time.Now()
	var result *EntryResult

	err := uc.inTx(ctx, func(ctx context.Context, tx Transaction) error {
		prior, err := uc.replay(ctx, tx, op, input.IdempotencyKey)
		if err != nil {
			return err
		}
		if prior != nil {
			if prior[0].UserID != input.UserID || prior[0].Amount != input.Amount {
				return domain.ErrIdempotencyConflict
			}
			result = &EntryResult{Entry: prior[0], Replayed: true}
			return nil
		}

		now := uc.clock.Now()
		if err := uc.guard.checkAt(ctx, tx, now, LimitRequest{UserID: input.UserID, Kind: kind, Amount: input.Amount}); err != nil {
			return err
		}

		entry := &domain.Entry{
			UserID:         input.UserID,
			Kind:           kind,
			Operation:      op,
			Amount:         input.Amount,
			Reason:         input.Reason,
			IdempotencyKey: input.IdempotencyKey,
			GroupID:        uc.idGen.Generate(),
			CreatedAt:      now,
		}
		if err := uc.appendAll(ctx, tx, op, entry); err != nil {
			return err
		}

		result = &EntryResult{Entry: entry}
		return nil
	})
	if err != nil {
		uc.observe(op, start, err)
		uc.logger.Warn().Err(err).Str("op", string(op)).Str("user_id", input.UserID).Int64("amount", input.Amount).Msg("operation rejected")
		return nil, err
	}

	if result.Replayed {
		uc.observe(op, start, nil)
	} else {
		uc.observe(op, start, nil, result.Entry)
	}

	uc.logger.Info().
		Str("op", string(op)).
		Int64("entry_id", result.Entry.ID).
		Str("user_id", input.UserID).
		Int64("amount", input.Amount).
		Bool("replayed", result.Replayed).
		Msg("entry committed")

	return result, nil
}

// Transfer moves points from one user to another as a paired transfer_out and transfer_in.
// Only the sender's outgoing total is checked against the transfer limit.
func (uc *PointsUseCase) Transfer(ctx context.Context, input TransferInput) (*TransferResult, error) {
	if err := domain.ValidateUserID(input.FromUserID); err != nil {
		return nil, err
	}
	if err := domain.ValidateUserID(input.ToUserID); err != nil {
		return nil, err
	}
	if input.FromUserID == input.ToUserID {
		return nil, domain.ErrSameUser
	}
	if err := domain.ValidateAmount(input.Amount); err != nil {
		return nil, err
	}
	if err := domain.ValidateReason(input.Reason); err != nil {
		return nil, err
	}
	if err := domain.ValidateIdempotencyKey(input.IdempotencyKey); err != nil {
		return nil, err
	}

	start := time.Now()
	var result *TransferResult

	err := uc.inTx(ctx, func(ctx context.Context, tx Transaction) error {
		prior, err := uc.replay(ctx, tx, domain.OperationTransfer, input.IdempotencyKey)
		if err != nil {
			return err
		}
		if prior != nil {
			result = &TransferResult{Replayed: true}
			for _, e := range prior {
				switch e.Kind {
				case domain.KindTransferOut:
					result.Out = e
				case domain.KindTransferIn:
					result.In = e
				}
			}
			if result.Out == nil || result.In == nil ||
				result.Out.UserID != input.FromUserID || result.In.UserID != input.ToUserID || result.Out.Amount != input.Amount {
				return domain.ErrIdempotencyConflict
			}
			return nil
		}

		now := uc.clock.Now()
		if err := uc.guard.checkAt(ctx, tx, now, LimitRequest{UserID: input.FromUserID, Kind: domain.KindTransferOut, Amount: input.Amount}); err != nil {
			return err
		}

		groupID := uc.idGen.Generate()
		out := &domain.Entry{
			UserID:         input.FromUserID,
			Kind:           domain.KindTransferOut,
			Operation:      domain.OperationTransfer,
			Amount:         input.Amount,
			Reason:         input.Reason,
			IdempotencyKey: input.IdempotencyKey,
			GroupID:        groupID,
			CreatedAt:      now,
		}
		in := &domain.Entry{
			UserID:         input.ToUserID,
			Kind:           domain.KindTransferIn,
			Operation:      domain.OperationTransfer,
			Amount:         input.Amount,
			Reason:         input.Reason,
			IdempotencyKey: input.IdempotencyKey,
			GroupID:        groupID,
			CreatedAt:      now,
		}
		if err := uc.appendAll(ctx, tx, domain.OperationTransfer, out, in); err != nil {
			return err
		}

		result = &TransferResult{Out: out, In: in}
		return nil
	})
	if err != nil {
		uc.observe(domain.OperationTransfer, start, err)
		uc.logger.Warn().Err(err).
			Str("from_user_id", input.FromUserID).
			Str("to_user_id", input.ToUserID).
			Int64("amount", input.Amount).
			Msg("transfer rejected")
		return nil, err
	}

	if result.Replayed {
		uc.observe(domain.OperationTransfer, start, nil)
	} else {
		uc.observe(domain.OperationTransfer, start, nil, result.Out, result.In)
	}

	uc.logger.Info().
		Int64("out_entry_id", result.Out.ID).
		Int64("in_entry_id", result.In.ID).
		Str("group_id", result.Out.GroupID).
		Int64("amount", input.Amount).
		Bool("replayed", result.Replayed).
		Msg("transfer committed")

	return result, nil
}
