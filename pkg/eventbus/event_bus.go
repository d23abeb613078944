// Package eventbus carries ticket lifecycle events between services over watermill.
package eventbus

import (
	"context"

	"github.com/coderAhmedHamood/pipefy/pkg/events"
)

type Event interface {
	GetType() events.EventType
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

// EventHandler receives one decoded ticket event: *events.TicketCreated,
// *events.TicketMoved, *events.TicketCompleted, *events.TicketReopened or
// *events.TicketMigrated, matching the type it was registered for. A returned
// error nacks the message so the bus redelivers it.
type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
