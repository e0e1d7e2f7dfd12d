package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/iho/pointledger/internal/adapter/http/dto"
	"github.com/iho/pointledger/internal/usecase"
)

// PointsService defines the behavior needed by PointsHandler.
type PointsService interface {
	Earn(ctx context.Context, input usecase.EntryInput) (*usecase.EntryResult, error)
	Spend(ctx context.Context, input usecase.EntryInput) (*usecase.EntryResult, error)
	Transfer(ctx context.Context, input usecase.TransferInput) (*usecase.TransferResult, error)
}

// ReversalService defines the behavior needed to reverse entries.
type ReversalService interface {
	Reverse(ctx context.Context, input usecase.ReverseInput) (*usecase.ReverseResult, error)
}

// PointsHandler handles the mutating points endpoints.
type PointsHandler struct {
	pointsUC   PointsService
	reversalUC ReversalService
}

// NewPointsHandler creates a new PointsHandler.
func NewPointsHandler(pointsUC PointsService, reversalUC ReversalService) *PointsHandler {
	return &PointsHandler{pointsUC: pointsUC, reversalUC: reversalUC}
}

// Earn credits points to a user.
func (h *PointsHandler) Earn(w http.ResponseWriter, r *http.Request) {
	h.entry(w, r, h.pointsUC.Earn, "failed to earn points")
}

// Spend debits points from a user.
func (h *PointsHandler) Spend(w http.ResponseWriter, r *http.Request) {
	h.entry(w, r, h.pointsUC.Spend, "failed to spend points")
}

func (h *PointsHandler) entry(
	w http.ResponseWriter,
	r *http.Request,
	op func(context.Context, usecase.EntryInput) (*usecase.EntryResult, error),
	failure string,
) {
	var req dto.EntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidInput, "invalid request body", err.Error())
		return
	}

	result, err := op(r.Context(), req.ToUseCaseInput(r.Header.Get(IdempotencyKeyHeader)))
	if err != nil {
		writeDomainError(w, failure, err)
		return
	}

	writeJSON(w, statusFor(result.Replayed), dto.EntryResultFromUseCase(result))
}

// Transfer moves points between two users.
func (h *PointsHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req dto.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidInput, "invalid request body", err.Error())
		return
	}

	result, err := h.pointsUC.Transfer(r.Context(), req.ToUseCaseInput(r.Header.Get(IdempotencyKeyHeader)))
	if err != nil {
		writeDomainError(w, "failed to transfer points", err)
		return
	}

	writeJSON(w, statusFor(result.Replayed), dto.TransferFromUseCase(result))
}

// Reverse compensates a committed entry.
func (h *PointsHandler) Reverse(w http.ResponseWriter, r *http.Request) {
	var req dto.ReversalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidInput, "invalid request body", err.Error())
		return
	}

	result, err := h.reversalUC.Reverse(r.Context(), req.ToUseCaseInput(r.Header.Get(IdempotencyKeyHeader)))
	if err != nil {
		writeDomainError(w, "failed to reverse entry", err)
		return
	}

	writeJSON(w, statusFor(result.Replayed), dto.ReversalFromUseCase(result))
}
