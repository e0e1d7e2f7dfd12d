package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a database transaction
	// This prevents long-running transactions from blocking tables
	DefaultTransactionTimeout = 10 * time.Second

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour
)

// IdempotencyMode controls whether the core rejects repeated idempotency keys.
type IdempotencyMode string

const (
	// IdempotencyEnforce replays the committed result of a repeated key.
	IdempotencyEnforce IdempotencyMode = "enforce"
	// IdempotencyStoreOnly records keys on entries without acting on them.
	IdempotencyStoreOnly IdempotencyMode = "store"
)

// Lock key prefixes for Locker.
const (
	lockPrefixIdempotency = "idem"
	lockPrefixLimit       = "limit"
)
