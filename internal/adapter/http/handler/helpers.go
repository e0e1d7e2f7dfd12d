package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/iho/pointledger/internal/adapter/http/dto"
	"github.com/iho/pointledger/internal/domain"
)

// IdempotencyKeyHeader carries the idempotency key when the body omits it.
const IdempotencyKeyHeader = "Idempotency-Key"

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Codes for errors raised by the handlers themselves rather than the domain.
const (
	codeInvalidInput = "invalid_input"
	codeUnavailable  = "unavailable"
)

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, code, message, details string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error:   message,
		Code:    code,
		Message: details,
	})
}

// writeDomainError writes err with the status mapDomainError assigns to it.
// Limit rejections carry the limit, current total and requested amount.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	resp := dto.ErrorResponse{
		Error:   message,
		Code:    domain.ErrorCode(err),
		Message: err.Error(),
	}

	var limitErr *domain.LimitExceededError
	if errors.As(err, &limitErr) {
		resp.Details = map[string]any{
			"kind":      string(limitErr.Kind),
			"limit":     limitErr.Limit,
			"current":   limitErr.Current,
			"requested": limitErr.Requested,
		}
	}

	status := mapDomainError(err)
	if status == http.StatusInternalServerError {
		// Storage details stay in the logs.
		resp.Message = "internal error"
	}

	writeJSON(w, status, resp)
}

// mapDomainError maps domain errors to HTTP status codes.
func mapDomainError(err error) int {
	switch {
	case errors.Is(err, domain.ErrLimitExceeded):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrEntryNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyReversed),
		errors.Is(err, domain.ErrIdempotencyConflict),
		errors.Is(err, domain.ErrPairNotFound):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnsupportedReversal),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidUserID),
		errors.Is(err, domain.ErrInvalidKind),
		errors.Is(err, domain.ErrSameUser),
		errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// statusFor returns 200 for replays and 201 for newly written entries.
func statusFor(replayed bool) int {
	if replayed {
		return http.StatusOK
	}
	return http.StatusCreated
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultValue int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return i
}
