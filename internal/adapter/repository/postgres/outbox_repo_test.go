package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/iho/pointledger/internal/domain"
)

func TestOutboxRepositoryCreate(t *testing.T) {
	pool := newMockPool(t)
	tx := beginMockTx(t, pool)
	repo := newOutboxRepositoryWithDB(pool)
	now := time.Now().UTC()

	pool.ExpectQuery(regexp.QuoteMeta("INSERT INTO outbox_events")).
		WithArgs("ev-1", "7", domain.AggregateTypeEntry, domain.EventTypePointsEarned,
			[]byte(`{"amount":10}`), pgtype.Timestamptz{Time: now, Valid: true}, false).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "aggregate_id", "aggregate_type", "event_type", "payload", "created_at", "published_at", "published",
		}).AddRow("ev-1", "7", domain.AggregateTypeEntry, domain.EventTypePointsEarned,
			[]byte(`{"amount":10}`), pgtype.Timestamptz{Time: now, Valid: true}, nil, false))

	err := repo.Create(context.Background(), tx, &domain.OutboxEvent{
		ID:            "ev-1",
		AggregateID:   "7",
		AggregateType: domain.AggregateTypeEntry,
		EventType:     domain.EventTypePointsEarned,
		Payload:       map[string]any{"amount": 10},
		CreatedAt:     now,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assertExpectations(t, pool)
}

func TestOutboxRepositoryGetUnpublished(t *testing.T) {
	pool := newMockPool(t)
	repo := newOutboxRepositoryWithDB(pool)

	pool.ExpectQuery(regexp.QuoteMeta("WHERE published = FALSE")).
		WithArgs(int32(10)).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "aggregate_id", "aggregate_type", "event_type", "payload", "created_at", "published_at", "published",
		}).AddRow("ev-1", "grp-1", domain.AggregateTypeGroup, domain.EventTypePointsTransferred,
			[]byte(`{"group_id":"grp-1"}`), pgtype.Timestamptz{Time: time.Now(), Valid: true}, nil, false))

	events, err := repo.GetUnpublished(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].Payload["group_id"] != "grp-1" {
		t.Fatalf("unexpected events: %+v", events)
	}
	if events[0].PublishedAt != nil {
		t.Fatalf("expected nil published_at")
	}
}

func TestOutboxRepositoryDeletePublished(t *testing.T) {
	pool := newMockPool(t)
	repo := newOutboxRepositoryWithDB(pool)
	cutoff := time.Now().Add(-72 * time.Hour)

	pool.ExpectExec(regexp.QuoteMeta("DELETE FROM outbox_events")).
		WithArgs(pgtype.Timestamptz{Time: cutoff, Valid: true}).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	deleted, err := repo.DeletePublished(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 4 {
		t.Fatalf("expected 4 deleted, got %d", deleted)
	}
}

func TestOutboxRepositoryCreateRequiresTransaction(t *testing.T) {
	pool := newMockPool(t)
	repo := newOutboxRepositoryWithDB(pool)

	err := repo.Create(context.Background(), nil, &domain.OutboxEvent{ID: "ev-1"})
	if !errors.Is(err, errOutboxOutsideTx) {
		t.Fatalf("expected errOutboxOutsideTx, got %v", err)
	}

	assertExpectations(t, pool)
}

func TestOutboxRepositoryGetUnpublishedKeepsLargeAmounts(t *testing.T) {
	pool := newMockPool(t)
	repo := newOutboxRepositoryWithDB(pool)

	pool.ExpectQuery(regexp.QuoteMeta("WHERE published = FALSE")).
		WithArgs(int32(1)).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "aggregate_id", "aggregate_type", "event_type", "payload", "created_at", "published_at", "published",
		}).AddRow("ev-1", "7", domain.AggregateTypeEntry, domain.EventTypePointsEarned,
			[]byte(`{"amount":9007199254740993}`), pgtype.Timestamptz{Time: time.Now(), Valid: true}, nil, false))

	events, err := repo.GetUnpublished(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	amount, ok := events[0].Payload["amount"].(json.Number)
	if !ok || amount.String() != "9007199254740993" {
		t.Fatalf("expected exact json.Number amount, got %#v", events[0].Payload["amount"])
	}
}

func TestOutboxRepositoryGetUnpublishedCorruptPayload(t *testing.T) {
	pool := newMockPool(t)
	repo := newOutboxRepositoryWithDB(pool)

	pool.ExpectQuery(regexp.QuoteMeta("WHERE published = FALSE")).
		WithArgs(int32(1)).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "aggregate_id", "aggregate_type", "event_type", "payload", "created_at", "published_at", "published",
		}).AddRow("ev-bad", "7", domain.AggregateTypeEntry, domain.EventTypePointsEarned,
			[]byte(`{"amount":`), pgtype.Timestamptz{Time: time.Now(), Valid: true}, nil, false))

	if _, err := repo.GetUnpublished(context.Background(), 1); err == nil {
		t.Fatal("expected decode error")
	}
}
