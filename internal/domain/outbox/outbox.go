// Package outbox models rows written next to a state change and later published on the
// realtime bus.
package outbox

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// OutboxEvent is one pending notification. Seq is assigned by the store and fixes publish
// order; AggregateType and AggregateID select the topic.
type OutboxEvent struct {
	Seq           int64
	ID            uuid.UUID
	EventType     string
	AggregateType string
	AggregateID   string
	Payload       []byte
	Status        Status
	RetryCount    int
	Error         string
	NextAttemptAt time.Time
	CreatedAt     time.Time
	ProcessedAt   *time.Time
}

func New(eventType, aggregateType, aggregateID string, payload []byte, at time.Time) OutboxEvent {
	return OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Payload:       payload,
		Status:        StatusPending,
		NextAttemptAt: at,
		CreatedAt:     at,
	}
}

// Due reports whether the row may be attempted at now.
func (e OutboxEvent) Due(now time.Time) bool {
	return !e.NextAttemptAt.After(now)
}

func (e OutboxEvent) Exhausted(maxRetries int) bool {
	return e.RetryCount >= maxRetries
}
