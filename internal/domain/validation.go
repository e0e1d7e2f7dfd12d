package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Validation constants
const (
	MaxUserIDLength         = 128
	MaxReasonLength         = 512
	MaxIdempotencyKeyLength = 255
	// MaxAmount caps a single request so daily sums stay far from int64 overflow.
	MaxAmount int64 = 1_000_000_000_000
)

// ValidateUserID validates a user identifier.
func ValidateUserID(userID string) error {
	trimmed := strings.TrimSpace(userID)

	if trimmed == "" {
		return fmt.Errorf("%w: user ID cannot be empty", ErrInvalidUserID)
	}

	if trimmed != userID {
		return fmt.Errorf("%w: user ID has surrounding whitespace", ErrInvalidUserID)
	}

	if len(userID) > MaxUserIDLength {
		return fmt.Errorf("%w: user ID exceeds %d characters", ErrInvalidUserID, MaxUserIDLength)
	}

	return nil
}

// ValidateAmount validates a requested point amount.
func ValidateAmount(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	if amount > MaxAmount {
		return fmt.Errorf("%w: maximum amount is %d", ErrInvalidAmount, MaxAmount)
	}

	return nil
}

// ValidateReason validates the free-text reason.
func ValidateReason(reason string) error {
	if utf8.RuneCountInString(reason) > MaxReasonLength {
		return fmt.Errorf("%w: reason exceeds %d characters", ErrInvalidInput, MaxReasonLength)
	}
	return nil
}

// ValidateIdempotencyKey validates a caller-supplied idempotency key. Empty keys are allowed.
func ValidateIdempotencyKey(key string) error {
	if len(key) > MaxIdempotencyKeyLength {
		return fmt.Errorf("%w: idempotency key exceeds %d characters", ErrInvalidInput, MaxIdempotencyKeyLength)
	}
	return nil
}

// ValidatePagination validates and limits pagination parameters
func ValidatePagination(limit, offset int) (int, int) {
	const MaxPageSize = 100
	const DefaultPageSize = 20

	if limit <= 0 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset
}
