package history

import (
	"context"
	"time"
)

// EventType defines the kind of lifecycle event.
type EventType string

const (
	EventStart   EventType = "start"
	EventStop    EventType = "stop"
	EventRestart EventType = "restart"
	EventRecover EventType = "recover"
)

// Event represents a lifecycle event to be exported to external systems.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	ProjectID  string    `json:"project_id"`
	Role       string    `json:"role"`
	PID        int       `json:"pid"`
	Port       int       `json:"port"`
}

// Sink is a destination for history events (analytics/statistics systems).
// Implementations must be safe for concurrent use. Delivery is best
// effort; the lifecycle manager ignores send errors.
type Sink interface {
	Send(ctx context.Context, e Event) error
}
