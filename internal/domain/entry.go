package domain

import (
	"time"
)

// Kind is the category of a ledger entry.
type Kind string

const (
	KindEarn        Kind = "earn"
	KindSpend       Kind = "spend"
	KindTransferOut Kind = "transfer_out"
	KindTransferIn  Kind = "transfer_in"
)

var validKinds = map[Kind]bool{
	KindEarn:        true,
	KindSpend:       true,
	KindTransferOut: true,
	KindTransferIn:  true,
}

// IsValid checks if the kind is one of the known entry kinds.
func (k Kind) IsValid() bool {
	return validKinds[k]
}

// Sign returns +1 for kinds that credit the owner and -1 for kinds that debit it.
func (k Kind) Sign() int64 {
	switch k {
	case KindEarn, KindTransferIn:
		return 1
	case KindSpend, KindTransferOut:
		return -1
	default:
		return 0
	}
}

// IsTransfer reports whether the kind is one leg of a transfer.
func (k Kind) IsTransfer() bool {
	return k == KindTransferOut || k == KindTransferIn
}

// ParseKind parses a kind string.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.IsValid() {
		return "", ErrInvalidKind
	}
	return k, nil
}

// Operation is the logical request that produced a set of entries.
type Operation string

const (
	OperationEarn     Operation = "earn"
	OperationSpend    Operation = "spend"
	OperationTransfer Operation = "transfer"
	OperationReversal Operation = "reversal"
)

// Entry is a single-sided movement of points. Entries are immutable once committed.
type Entry struct {
	CreatedAt      time.Time
	ReversalOf     *int64
	UserID         string
	Kind           Kind
	Operation      Operation
	Reason         string
	IdempotencyKey string
	// GroupID is shared by all entries written by one operation. The two legs of a
	// transfer are paired through it.
	GroupID string
	ID      int64
	Amount  int64
}

// SignedAmount returns the entry's contribution to its owner's balance.
func (e *Entry) SignedAmount() int64 {
	return e.Kind.Sign() * e.Amount
}

// IsReversal reports whether the entry compensates another entry.
func (e *Entry) IsReversal() bool {
	return e.ReversalOf != nil
}

// Balance folds entries into a signed balance.
func Balance(entries []*Entry) int64 {
	var total int64
	for _, e := range entries {
		total += e.SignedAmount()
	}
	return total
}

// ConsistencyTotals are the ledger-wide figures an integrity check compares.
type ConsistencyTotals struct {
	TransferOut    int64
	TransferIn     int64
	UnpairedGroups int64
}
