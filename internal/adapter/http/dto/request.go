package dto

import (
	"github.com/iho/pointledger/internal/usecase"
)

// EntryRequest is the body of earn and spend requests.
type EntryRequest struct {
	UserID         string `json:"user_id"`
	Amount         int64  `json:"amount"`
	Reason         string `json:"reason"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// ToUseCaseInput converts to use case input. headerKey is used when the body carries no key.
func (r *EntryRequest) ToUseCaseInput(headerKey string) usecase.EntryInput {
	return usecase.EntryInput{
		UserID:         r.UserID,
		Amount:         r.Amount,
		Reason:         r.Reason,
		IdempotencyKey: pickKey(r.IdempotencyKey, headerKey),
	}
}

// TransferRequest represents a request to move points between users.
type TransferRequest struct {
	FromUser       string `json:"from_user"`
	ToUser         string `json:"to_user"`
	Amount         int64  `json:"amount"`
	Reason         string `json:"reason"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *TransferRequest) ToUseCaseInput(headerKey string) usecase.TransferInput {
	return usecase.TransferInput{
		FromUserID:     r.FromUser,
		ToUserID:       r.ToUser,
		Amount:         r.Amount,
		Reason:         r.Reason,
		IdempotencyKey: pickKey(r.IdempotencyKey, headerKey),
	}
}

// ReversalRequest represents a request to reverse a committed entry.
type ReversalRequest struct {
	OriginalTxID   int64  `json:"original_tx_id"`
	Reason         string `json:"reason"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *ReversalRequest) ToUseCaseInput(headerKey string) usecase.ReverseInput {
	return usecase.ReverseInput{
		OriginalEntryID: r.OriginalTxID,
		Reason:          r.Reason,
		IdempotencyKey:  pickKey(r.IdempotencyKey, headerKey),
	}
}

func pickKey(bodyKey, headerKey string) string {
	if bodyKey != "" {
		return bodyKey
	}
	return headerKey
}
