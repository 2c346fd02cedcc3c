package history

import (
	"context"
	"time"
)

// EventType defines the kind of lifecycle event.
type EventType string

const (
	EventStart EventType = "start"
	EventStop  EventType = "stop"
	EventSave  EventType = "save"
)

// Event is a single lifecycle outcome to be exported for audit/statistics.
// Err carries the substep failure text when the operation was degraded
// (e.g., a stop whose snapshot capture failed) and is empty otherwise.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	PID        int       `json:"pid"`
	Detail     string    `json:"detail"`
	Err        string    `json:"err,omitempty"`
}

// Sink is a destination for history events.
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}
