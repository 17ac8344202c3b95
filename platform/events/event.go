// Package events is the in-process publish/subscribe plumbing modules use to
// react to each other's writes without importing each other.
package events

import (
	"context"
	"time"
)

// Event is anything published on the bus. EventName is the subscription key.
type Event interface {
	EventName() string
	OccurredAt() time.Time
}

// BaseEvent carries the timestamp every event embeds.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// NewBaseEvent stamps an event with the current time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now()}
}

type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc lets a plain function subscribe.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error { return f(ctx, event) }

// Publisher is what producers depend on. Publish never blocks on handlers.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Subscriber is what consumers depend on.
type Subscriber interface {
	Subscribe(eventName string, handler Handler)
}

type Bus interface {
	Publisher
	Subscriber
}

var _ Bus = (*InMemoryBus)(nil)
