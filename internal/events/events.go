// Package events publishes ballot lifecycle notifications to downstream
// consumers such as turnout dashboards.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TypeVoteCommitted is emitted once per registrant, on the first commit.
const TypeVoteCommitted = "vote.committed"

// Event is the envelope written to the stream. Payload never carries
// national ids or phone numbers.
type Event struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	OccurredAt time.Time         `json:"occurred_at"`
	Key        string            `json:"key"`
	Payload    map[string]string `json:"payload"`
}

// NewEvent stamps a fresh event id.
func NewEvent(eventType, key string, at time.Time, payload map[string]string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: at.UTC(),
		Key:        key,
		Payload:    payload,
	}
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

func (NopPublisher) Close() error { return nil }
