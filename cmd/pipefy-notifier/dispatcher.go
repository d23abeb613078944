package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/coderAhmedHamood/pipefy/pkg/eventbus"
	"github.com/coderAhmedHamood/pipefy/pkg/events"
)

// Dispatcher hands ticket events to the delivery side. Delivery channels are
// not implemented; every event is written to the log.
type Dispatcher struct {
	logger *slog.Logger
}

func NewDispatcher(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{logger: logger.With("module", "dispatcher")}
}

// Register subscribes the dispatcher to every ticket event type.
func (d *Dispatcher) Register(bus eventbus.EventSubscriber) error {
	for _, eventType := range events.AllTypes {
		if err := bus.Handle(eventType, d.Handle); err != nil {
			return fmt.Errorf("failed to register handler for %s: %w", eventType, err)
		}
	}

	return nil
}

func (d *Dispatcher) Handle(ctx context.Context, event any) error {
	switch e := event.(type) {
	case *events.TicketCreated:
		d.logger.InfoContext(ctx, "Ticket created",
			append(baseAttrs(e.BaseEvent), "title", e.Title, "priority", e.Priority, "origin", e.Origin)...)
	case *events.TicketMoved:
		d.logger.InfoContext(ctx, "Ticket moved",
			append(baseAttrs(e.BaseEvent), "from_stage", e.FromStageName, "to_stage", e.ToStageName)...)
	case *events.TicketCompleted:
		d.logger.InfoContext(ctx, "Ticket completed",
			append(baseAttrs(e.BaseEvent), "completed_at", e.CompletedAt)...)
	case *events.TicketReopened:
		d.logger.InfoContext(ctx, "Ticket reopened", baseAttrs(e.BaseEvent)...)
	case *events.TicketMigrated:
		d.logger.InfoContext(ctx, "Ticket migrated",
			append(baseAttrs(e.BaseEvent), "from_process_id", e.FromProcessID, "orphaned_fields", e.OrphanedFields)...)
	default:
		return fmt.Errorf("unsupported event %T", event)
	}

	return nil
}

func baseAttrs(e events.BaseEvent) []any {
	attrs := []any{
		"event_id", e.ID,
		"ticket_id", e.TicketID,
		"ticket_number", e.TicketNumber,
		"process_id", e.ProcessID,
		"stage_id", e.StageID,
	}

	if e.Actor != "" {
		attrs = append(attrs, "actor", e.Actor)
	}

	if e.AssignedTo != nil {
		attrs = append(attrs, "assigned_to", *e.AssignedTo)
	}

	return attrs
}
