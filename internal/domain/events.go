package domain

import (
	"strconv"
	"time"
)

// Event types
const (
	EventTypePointsEarned      = "points.earned"
	EventTypePointsSpent       = "points.spent"
	EventTypePointsTransferred = "points.transferred"
	EventTypeEntryReversed     = "entry.reversed"
)

// Aggregate types
const (
	AggregateTypeEntry = "entry"
	AggregateTypeGroup = "group"
)

// OutboxEvent represents an event to be published
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// EntryEventPayload describes one committed entry inside an event payload.
func EntryEventPayload(e *Entry) map[string]any {
	payload := map[string]any{
		"entry_id":   strconv.FormatInt(e.ID, 10),
		"user_id":    e.UserID,
		"kind":       string(e.Kind),
		"amount":     e.Amount,
		"reason":     e.Reason,
		"group_id":   e.GroupID,
		"created_at": e.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if e.ReversalOf != nil {
		payload["reversal_of"] = strconv.FormatInt(*e.ReversalOf, 10)
	}
	return payload
}

// EventTypeFor maps an operation to the event type emitted when it commits.
func EventTypeFor(op Operation) string {
	switch op {
	case OperationEarn:
		return EventTypePointsEarned
	case OperationSpend:
		return EventTypePointsSpent
	case OperationTransfer:
		return EventTypePointsTransferred
	default:
		return EventTypeEntryReversed
	}
}
