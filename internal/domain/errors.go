package domain

import (
	"errors"
	"fmt"
)

var (
	// Entry errors
	ErrEntryNotFound       = errors.New("entry not found")
	ErrAlreadyReversed     = errors.New("entry was already reversed")
	ErrPairNotFound        = errors.New("matching transfer_in not found for reversal")
	ErrUnsupportedReversal = errors.New("entry kind cannot be reversed")
	ErrInvalidKind         = errors.New("invalid entry kind")

	// Request errors
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInvalidUserID       = errors.New("invalid user ID")
	ErrSameUser            = errors.New("cannot transfer to same user")
	ErrInvalidInput        = errors.New("invalid input")
	ErrIdempotencyConflict = errors.New("idempotency key already used by a different operation")

	// ErrLimitExceeded is matched by every *LimitExceededError.
	ErrLimitExceeded = errors.New("daily limit exceeded")

	// ErrStorage is matched by every *StorageError.
	ErrStorage = errors.New("storage error")
)

// LimitExceededError is returned when a request would push a user's daily total past its ceiling.
type LimitExceededError struct {
	Kind      Kind
	Limit     int64
	Current   int64
	Requested int64
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("daily limit exceeded for %s: limit=%d, current=%d, requested=%d",
		e.Kind, e.Limit, e.Current, e.Requested)
}

// Is lets errors.Is(err, ErrLimitExceeded) match.
func (e *LimitExceededError) Is(target error) bool {
	return target == ErrLimitExceeded
}

// StorageError wraps a durability or transport failure from the entry store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrStorage) match.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

// NewStorageError wraps err, leaving nil and already-typed domain errors untouched.
func NewStorageError(op string, err error) error {
	if err == nil || IsDomainError(err) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// IsDomainError reports whether err is one of the typed outcomes callers are expected to handle.
func IsDomainError(err error) bool {
	switch {
	case errors.Is(err, ErrEntryNotFound),
		errors.Is(err, ErrAlreadyReversed),
		errors.Is(err, ErrPairNotFound),
		errors.Is(err, ErrUnsupportedReversal),
		errors.Is(err, ErrInvalidKind),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidUserID),
		errors.Is(err, ErrSameUser),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrIdempotencyConflict),
		errors.Is(err, ErrLimitExceeded),
		errors.Is(err, ErrStorage):
		return true
	}
	return false
}

// ErrorCode returns a stable machine-readable code for err.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrLimitExceeded):
		return "limit_exceeded"
	case errors.Is(err, ErrEntryNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyReversed):
		return "already_reversed"
	case errors.Is(err, ErrPairNotFound):
		return "pair_not_found"
	case errors.Is(err, ErrUnsupportedReversal):
		return "unsupported_reversal"
	case errors.Is(err, ErrIdempotencyConflict):
		return "idempotency_conflict"
	case errors.Is(err, ErrStorage):
		return "storage"
	case IsDomainError(err):
		return "invalid_input"
	default:
		return "internal"
	}
}
