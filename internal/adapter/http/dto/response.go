package dto

import (
	"time"

	"github.com/iho/pointledger/internal/domain"
	"github.com/iho/pointledger/internal/usecase"
)

// EntryResponse represents an entry in API responses.
type EntryResponse struct {
	ID             int64     `json:"id"`
	UserID         string    `json:"user_id"`
	Kind           string    `json:"kind"`
	Operation      string    `json:"operation"`
	Amount         int64     `json:"amount"`
	Reason         string    `json:"reason"`
	GroupID        string    `json:"group_id"`
	ReversalOf     *int64    `json:"reversal_of,omitempty"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// EntryFromDomain converts domain entry to response.
func EntryFromDomain(e *domain.Entry) *EntryResponse {
	return &EntryResponse{
		ID:             e.ID,
		UserID:         e.UserID,
		Kind:           string(e.Kind),
		Operation:      string(e.Operation),
		Amount:         e.Amount,
		Reason:         e.Reason,
		GroupID:        e.GroupID,
		ReversalOf:     e.ReversalOf,
		IdempotencyKey: e.IdempotencyKey,
		CreatedAt:      e.CreatedAt,
	}
}

// EntriesFromDomain converts domain entries to responses.
func EntriesFromDomain(entries []*domain.Entry) []*EntryResponse {
	result := make([]*EntryResponse, len(entries))
	for i, e := range entries {
		result[i] = EntryFromDomain(e)
	}
	return result
}

// EntryResultResponse is returned by earn and spend.
type EntryResultResponse struct {
	Entry    *EntryResponse `json:"entry"`
	Replayed bool           `json:"replayed"`
}

// EntryResultFromUseCase converts an earn or spend result.
func EntryResultFromUseCase(r *usecase.EntryResult) *EntryResultResponse {
	return &EntryResultResponse{
		Entry:    EntryFromDomain(r.Entry),
		Replayed: r.Replayed,
	}
}

// TransferResponse is returned by transfer.
type TransferResponse struct {
	GroupID  string         `json:"group_id"`
	Out      *EntryResponse `json:"out"`
	In       *EntryResponse `json:"in"`
	Replayed bool           `json:"replayed"`
}

// TransferFromUseCase converts a transfer result.
func TransferFromUseCase(r *usecase.TransferResult) *TransferResponse {
	return &TransferResponse{
		GroupID:  r.Out.GroupID,
		Out:      EntryFromDomain(r.Out),
		In:       EntryFromDomain(r.In),
		Replayed: r.Replayed,
	}
}

// ReversalResponse is returned by reversal.
type ReversalResponse struct {
	Status   string           `json:"status"`
	Reversed int64            `json:"reversed"`
	Entries  []*EntryResponse `json:"entries"`
	Replayed bool             `json:"replayed"`
}

// ReversalFromUseCase converts a reversal result.
func ReversalFromUseCase(r *usecase.ReverseResult) *ReversalResponse {
	return &ReversalResponse{
		Status:   "ok",
		Reversed: r.ReversedEntryID,
		Entries:  EntriesFromDomain(r.Entries),
		Replayed: r.Replayed,
	}
}

// BalanceResponse represents a user's balance.
type BalanceResponse struct {
	UserID  string `json:"user_id"`
	Balance int64  `json:"balance"`
}

// DailyTotalResponse represents a user's total for one kind on one calendar day.
type DailyTotalResponse struct {
	UserID    string `json:"user_id"`
	Kind      string `json:"kind"`
	Date      string `json:"date"`
	Total     int64  `json:"total"`
	Limit     int64  `json:"limit"`
	Remaining int64  `json:"remaining"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code,omitempty"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// ConsistencyResponse reports the outcome of a ledger integrity check.
type ConsistencyResponse struct {
	Status         string `json:"status"`
	Message        string `json:"message,omitempty"`
	Consistent     bool   `json:"consistent"`
	TransferOut    int64  `json:"transfer_out"`
	TransferIn     int64  `json:"transfer_in"`
	UnpairedGroups int64  `json:"unpaired_groups"`
}

// ConsistencyFromUseCase converts a consistency report to a response.
func ConsistencyFromUseCase(r *usecase.ConsistencyReport) *ConsistencyResponse {
	status := "consistent"
	if !r.Consistent {
		status = "inconsistent"
	}
	return &ConsistencyResponse{
		Status:         status,
		Consistent:     r.Consistent,
		TransferOut:    r.Totals.TransferOut,
		TransferIn:     r.Totals.TransferIn,
		UnpairedGroups: r.Totals.UnpairedGroups,
	}
}
