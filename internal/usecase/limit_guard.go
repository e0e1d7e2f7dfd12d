package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/iho/pointledger/internal/domain"
	"github.com/iho/pointledger/internal/infrastructure/metrics"
)

// LimitGuard rejects requests that would push a user's daily total for a kind past its ceiling.
//
// Check must run inside the transaction that appends the checked entries. It locks the
// (user, kind, day) scope before reading the total, and the lock is held until that
// transaction ends, so concurrent requests for the same scope are checked one at a time.
type LimitGuard struct {
	balances *BalanceUseCase
	locker   Locker
	limits   domain.Limits
	clock    Clock
	metrics  *metrics.Metrics
}

// NewLimitGuard creates a new LimitGuard.
func NewLimitGuard(balances *BalanceUseCase, locker Locker, limits domain.Limits, clock Clock) *LimitGuard {
	if clock == nil {
		clock = SystemClock{}
	}

	return &LimitGuard{
		balances: balances,
		locker:   locker,
		limits:   limits,
		clock:    clock,
	}
}

// WithMetrics sets the metrics collector.
func (g *LimitGuard) WithMetrics(m *metrics.Metrics) *LimitGuard {
	g.metrics = m
	return g
}

// Limits returns the configured ceilings.
func (g *LimitGuard) Limits() domain.Limits {
	return g.limits
}

// LimitRequest is one amount to check against a user's daily ceiling.
type LimitRequest struct {
	UserID string
	Kind   domain.Kind
	Amount int64
}

// Check verifies that amount fits under the user's daily ceiling for kind today.
func (g *LimitGuard) Check(ctx context.Context, tx Transaction, userID string, kind domain.Kind, amount int64) error {
	return g.checkAt(ctx, tx, g.clock.Now(), LimitRequest{UserID: userID, Kind: kind, Amount: amount})
}

// checkAt locks every scope touched by reqs in a fixed order, then checks each request.
// Requests sharing a scope are checked cumulatively.
func (g *LimitGuard) checkAt(ctx context.Context, tx Transaction, now time.Time, reqs ...LimitRequest) error {
	keys := make([]string, 0, len(reqs))
	seen := make(map[string]bool, len(reqs))
	for _, r := range reqs {
		if !r.Kind.IsValid() {
			return domain.ErrInvalidKind
		}

		key := g.scopeKey(r.UserID, r.Kind, now)
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		if err := g.locker.Lock(ctx, tx, key); err != nil {
			return domain.NewStorageError("lock limit scope", err)
		}
	}

	pending := make(map[string]int64, len(reqs))
	for _, r := range reqs {
		key := g.scopeKey(r.UserID, r.Kind, now)

		current, err := g.balances.dailyTotal(ctx, tx, r.UserID, r.Kind, now)
		if err != nil {
			return err
		}
		current += pending[key]

		limit := g.limits.LimitFor(r.Kind)
		if current+r.Amount > limit {
			if g.metrics != nil {
				g.metrics.LimitRejections.WithLabelValues(string(r.Kind)).Inc()
			}

			return &domain.LimitExceededError{
				Kind:      r.Kind,
				Limit:     limit,
				Current:   current,
				Requested: r.Amount,
			}
		}

		pending[key] += r.Amount
	}

	return nil
}

// scopeKey identifies the set of entries summed for a user's kind on the day of now.
func (g *LimitGuard) scopeKey(userID string, kind domain.Kind, now time.Time) string {
	kinds := g.limits.KindsFor(kind)
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}

	day, _ := DayBounds(now, g.balances.Location())

	return fmt.Sprintf("%s:%s:%s:%s", lockPrefixLimit, strings.Join(names, "+"), day.Format(time.DateOnly), userID)
}
