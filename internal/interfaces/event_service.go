package interfaces

import "context"

// EventType represents different event types in the system
type EventType string

const (
	// EventClick is published by the redirect handler on every
	// successful redirect.
	EventClick EventType = "click"

	// EventJobTerminal is published when a validation job reaches a
	// terminal status.
	EventJobTerminal EventType = "job_terminal"
)

// Event represents a system event
type Event struct {
	Type    EventType
	Payload interface{}
}

// EventHandler is a function that handles events
type EventHandler func(ctx context.Context, event Event) error

// EventService manages the in-process pub/sub event bus that decouples the
// redirect path from analytics.
type EventService interface {
	// Subscribe to an event type
	Subscribe(eventType EventType, handler EventHandler) error

	// Publish an event to all subscribers asynchronously
	Publish(ctx context.Context, event Event) error

	// PublishSync publishes event and waits for all handlers to complete
	PublishSync(ctx context.Context, event Event) error
}
