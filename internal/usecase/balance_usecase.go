package usecase

import (
	"context"
	"time"

	"github.com/iho/pointledger/internal/domain"
)

// BalanceUseCase derives balances and daily totals by folding over the entry store.
type BalanceUseCase struct {
	entryRepo EntryRepository
	limits    domain.Limits
	location  *time.Location
}

// NewBalanceUseCase creates a new BalanceUseCase. Calendar days are evaluated in location.
func NewBalanceUseCase(entryRepo EntryRepository, limits domain.Limits, location *time.Location) *BalanceUseCase {
	if location == nil {
		location = time.UTC
	}

	return &BalanceUseCase{
		entryRepo: entryRepo,
		limits:    limits,
		location:  location,
	}
}

// DayBounds returns the half-open window [start, end) of the calendar day containing t in loc.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// Location returns the time zone used for calendar days.
func (uc *BalanceUseCase) Location() *time.Location {
	return uc.location
}

// Limits returns the configured daily ceilings.
func (uc *BalanceUseCase) Limits() domain.Limits {
	return uc.limits
}

// DailyTotal sums the user's entries counting toward kind's limit on the calendar day of asOf.
func (uc *BalanceUseCase) DailyTotal(ctx context.Context, userID string, kind domain.Kind, asOf time.Time) (int64, error) {
	if !kind.IsValid() {
		return 0, domain.ErrInvalidKind
	}

	return uc.dailyTotal(ctx, nil, userID, kind, asOf)
}

func (uc *BalanceUseCase) dailyTotal(ctx context.Context, tx Transaction, userID string, kind domain.Kind, asOf time.Time) (int64, error) {
	since, until := DayBounds(asOf, uc.location)

	total, err := uc.entryRepo.SumAmount(ctx, tx, userID, uc.limits.KindsFor(kind), since, until)
	if err != nil {
		return 0, domain.NewStorageError("sum amount", err)
	}

	return total, nil
}

// Balance returns the signed sum of all the user's entries.
func (uc *BalanceUseCase) Balance(ctx context.Context, userID string) (int64, error) {
	balance, err := uc.entryRepo.Balance(ctx, userID)
	if err != nil {
		return 0, domain.NewStorageError("balance", err)
	}

	return balance, nil
}

// GetEntry retrieves an entry by ID.
func (uc *BalanceUseCase) GetEntry(ctx context.Context, id int64) (*domain.Entry, error) {
	entry, err := uc.entryRepo.GetByID(ctx, id)
	if err != nil {
		return nil, domain.NewStorageError("get entry", err)
	}

	return entry, nil
}

// ListEntriesInput represents input for listing a user's entries.
type ListEntriesInput struct {
	UserID string
	Limit  int
	Offset int
}

// History lists a user's entries, newest first.
func (uc *BalanceUseCase) History(ctx context.Context, input ListEntriesInput) ([]*domain.Entry, error) {
	limit, offset := domain.ValidatePagination(input.Limit, input.Offset)

	entries, err := uc.entryRepo.ListByUser(ctx, input.UserID, limit, offset)
	if err != nil {
		return nil, domain.NewStorageError("list entries", err)
	}

	return entries, nil
}
