package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidLimits is returned when the configured ceilings are unusable.
var ErrInvalidLimits = errors.New("invalid daily limits")

// LimitBucket names the daily ceiling an entry kind counts against.
type LimitBucket string

const (
	BucketEarn     LimitBucket = "earn"
	BucketSpend    LimitBucket = "spend"
	BucketTransfer LimitBucket = "transfer"
)

// TransferScope controls which transfer legs count toward the transfer ceiling.
type TransferScope string

const (
	// TransferScopeSeparate counts transfer_out and transfer_in as distinct kinds.
	TransferScopeSeparate TransferScope = "separate"
	// TransferScopeCombined sums both legs against the transfer ceiling.
	TransferScopeCombined TransferScope = "combined"
)

// IsValid checks if the scope is known.
func (s TransferScope) IsValid() bool {
	return s == TransferScopeSeparate || s == TransferScopeCombined
}

// Limits holds the configured daily ceilings. It is a value type and never changes after start.
type Limits struct {
	Earn          int64
	Spend         int64
	Transfer      int64
	TransferScope TransferScope
}

// BucketFor maps an entry kind to the ceiling it counts against.
func BucketFor(kind Kind) LimitBucket {
	switch kind {
	case KindEarn:
		return BucketEarn
	case KindSpend:
		return BucketSpend
	default:
		return BucketTransfer
	}
}

// LimitFor returns the daily ceiling for kind.
func (l Limits) LimitFor(kind Kind) int64 {
	switch BucketFor(kind) {
	case BucketEarn:
		return l.Earn
	case BucketSpend:
		return l.Spend
	default:
		return l.Transfer
	}
}

// KindsFor returns the entry kinds summed when checking kind's daily total.
func (l Limits) KindsFor(kind Kind) []Kind {
	if kind.IsTransfer() && l.TransferScope == TransferScopeCombined {
		return []Kind{KindTransferOut, KindTransferIn}
	}
	return []Kind{kind}
}

// Validate checks that every ceiling is positive.
func (l Limits) Validate() error {
	if l.Earn <= 0 || l.Spend <= 0 || l.Transfer <= 0 {
		return fmt.Errorf("%w: earn=%d spend=%d transfer=%d", ErrInvalidLimits, l.Earn, l.Spend, l.Transfer)
	}
	if l.TransferScope != "" && !l.TransferScope.IsValid() {
		return fmt.Errorf("%w: unknown transfer scope %q", ErrInvalidLimits, l.TransferScope)
	}
	return nil
}
