package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iho/pointledger/internal/adapter/http/dto"
	"github.com/iho/pointledger/internal/domain"
	"github.com/iho/pointledger/internal/usecase"
)

const dateLayout = "2006-01-02"

// BalanceService defines the read-side behavior needed by UserHandler.
type BalanceService interface {
	Balance(ctx context.Context, userID string) (int64, error)
	History(ctx context.Context, input usecase.ListEntriesInput) ([]*domain.Entry, error)
	DailyTotal(ctx context.Context, userID string, kind domain.Kind, asOf time.Time) (int64, error)
	GetEntry(ctx context.Context, id int64) (*domain.Entry, error)
	Limits() domain.Limits
	Location() *time.Location
}

// UserHandler serves balances, history and entries.
type UserHandler struct {
	balanceUC BalanceService
	now       func() time.Time
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(balanceUC BalanceService) *UserHandler {
	return &UserHandler{balanceUC: balanceUC, now: time.Now}
}

// Balance returns a user's balance.
func (h *UserHandler) Balance(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, codeInvalidInput, "missing user ID", "")
		return
	}

	balance, err := h.balanceUC.Balance(r.Context(), userID)
	if err != nil {
		writeDomainError(w, "failed to get balance", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.BalanceResponse{UserID: userID, Balance: balance})
}

// Entries lists a user's entries, newest first.
func (h *UserHandler) Entries(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, codeInvalidInput, "missing user ID", "")
		return
	}

	entries, err := h.balanceUC.History(r.Context(), usecase.ListEntriesInput{
		UserID: userID,
		Limit:  parseIntQuery(r, "limit", 20),
		Offset: parseIntQuery(r, "offset", 0),
	})
	if err != nil {
		writeDomainError(w, "failed to list entries", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EntriesFromDomain(entries))
}

// DailyTotal returns the user's total for a kind on today's ledger day, or on ?date=YYYY-MM-DD.
func (h *UserHandler) DailyTotal(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	kind, err := domain.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeDomainError(w, "invalid kind", err)
		return
	}

	loc := h.balanceUC.Location()
	asOf := h.now().In(loc)
	if raw := r.URL.Query().Get("date"); raw != "" {
		asOf, err = time.ParseInLocation(dateLayout, raw, loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidInput, "invalid date", err.Error())
			return
		}
	}

	total, err := h.balanceUC.DailyTotal(r.Context(), userID, kind, asOf)
	if err != nil {
		writeDomainError(w, "failed to get daily total", err)
		return
	}

	limit := h.balanceUC.Limits().LimitFor(kind)
	remaining := limit - total
	if remaining < 0 {
		remaining = 0
	}

	writeJSON(w, http.StatusOK, dto.DailyTotalResponse{
		UserID:    userID,
		Kind:      string(kind),
		Date:      asOf.Format(dateLayout),
		Total:     total,
		Limit:     limit,
		Remaining: remaining,
	})
}

// GetEntry retrieves an entry by ID.
func (h *UserHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, codeInvalidInput, "invalid entry ID", "")
		return
	}

	entry, err := h.balanceUC.GetEntry(r.Context(), id)
	if err != nil {
		writeDomainError(w, "failed to get entry", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EntryFromDomain(entry))
}
