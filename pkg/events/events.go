// Package events defines the ticket lifecycle events published for notification.
package events

import (
	"time"

	"github.com/coderAhmedHamood/pipefy/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic carries every ticket lifecycle event.
const Topic = "pipefy.ticket.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	TicketCreatedEvent   EventType = "ticket.created"
	TicketMovedEvent     EventType = "ticket.moved"
	TicketCompletedEvent EventType = "ticket.completed"
	TicketReopenedEvent  EventType = "ticket.reopened"
	TicketMigratedEvent  EventType = "ticket.migrated"
)

// AllTypes lists every ticket event type, in lifecycle order.
var AllTypes = []EventType{
	TicketCreatedEvent,
	TicketMovedEvent,
	TicketCompletedEvent,
	TicketReopenedEvent,
	TicketMigratedEvent,
}

type BaseEvent struct {
	ID           string         `json:"id"`
	Type         EventType      `json:"type"`
	Timestamp    time.Time      `json:"timestamp"`
	TicketID     string         `json:"ticket_id"`
	TicketNumber string         `json:"ticket_number"`
	ProcessID    string         `json:"process_id"`
	StageID      string         `json:"stage_id"`
	Actor        string         `json:"actor,omitempty"`
	AssignedTo   *string        `json:"assigned_to,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

func newBase(eventType EventType, ticket *models.Ticket, actor string, at time.Time) BaseEvent {
	return BaseEvent{
		ID:           uuid.NewString(),
		Type:         eventType,
		Timestamp:    at,
		TicketID:     ticket.ID,
		TicketNumber: ticket.TicketNumber,
		ProcessID:    ticket.ProcessID,
		StageID:      ticket.CurrentStageID,
		Actor:        actor,
		AssignedTo:   ticket.AssignedTo,
	}
}

type TicketCreated struct {
	BaseEvent

	Title    string                `json:"title"`
	Priority models.TicketPriority `json:"priority"`
	Origin   string                `json:"origin"`
	OriginID string                `json:"origin_id,omitempty"`
}

func (e TicketCreated) GetType() EventType {
	return TicketCreatedEvent
}

func NewTicketCreated(ticket *models.Ticket, actor, origin, originID string, at time.Time) *TicketCreated {
	return &TicketCreated{
		BaseEvent: newBase(TicketCreatedEvent, ticket, actor, at),
		Title:     ticket.Title,
		Priority:  ticket.Priority,
		Origin:    origin,
		OriginID:  originID,
	}
}

type TicketMoved struct {
	BaseEvent

	FromStageID   string `json:"from_stage_id"`
	FromStageName string `json:"from_stage_name"`
	ToStageName   string `json:"to_stage_name"`
	Comment       string `json:"comment,omitempty"`
}

func (e TicketMoved) GetType() EventType {
	return TicketMovedEvent
}

func NewTicketMoved(ticket *models.Ticket, actor, fromStageID, fromStageName, toStageName, comment string, at time.Time) *TicketMoved {
	return &TicketMoved{
		BaseEvent:     newBase(TicketMovedEvent, ticket, actor, at),
		FromStageID:   fromStageID,
		FromStageName: fromStageName,
		ToStageName:   toStageName,
		Comment:       comment,
	}
}

// TicketCompleted follows a move into a final stage.
type TicketCompleted struct {
	BaseEvent

	CompletedAt time.Time `json:"completed_at"`
}

func (e TicketCompleted) GetType() EventType {
	return TicketCompletedEvent
}

func NewTicketCompleted(ticket *models.Ticket, actor string, at time.Time) *TicketCompleted {
	completedAt := at
	if ticket.CompletedAt != nil {
		completedAt = *ticket.CompletedAt
	}

	return &TicketCompleted{
		BaseEvent:   newBase(TicketCompletedEvent, ticket, actor, at),
		CompletedAt: completedAt,
	}
}

// TicketReopened follows a move out of a final stage.
type TicketReopened struct {
	BaseEvent
}

func (e TicketReopened) GetType() EventType {
	return TicketReopenedEvent
}

func NewTicketReopened(ticket *models.Ticket, actor string, at time.Time) *TicketReopened {
	return &TicketReopened{BaseEvent: newBase(TicketReopenedEvent, ticket, actor, at)}
}

type TicketMigrated struct {
	BaseEvent

	FromProcessID  string   `json:"from_process_id"`
	FromStageID    string   `json:"from_stage_id"`
	OrphanedFields []string `json:"orphaned_fields,omitempty"`
}

func (e TicketMigrated) GetType() EventType {
	return TicketMigratedEvent
}

func NewTicketMigrated(ticket *models.Ticket, actor, fromProcessID, fromStageID string, orphaned []string, at time.Time) *TicketMigrated {
	return &TicketMigrated{
		BaseEvent:      newBase(TicketMigratedEvent, ticket, actor, at),
		FromProcessID:  fromProcessID,
		FromStageID:    fromStageID,
		OrphanedFields: orphaned,
	}
}

// New returns an empty event of the given type for decoding, or nil for
// unknown types.
func New(eventType EventType) any {
	switch eventType {
	case TicketCreatedEvent:
		return &TicketCreated{}
	case TicketMovedEvent:
		return &TicketMoved{}
	case TicketCompletedEvent:
		return &TicketCompleted{}
	case TicketReopenedEvent:
		return &TicketReopened{}
	case TicketMigratedEvent:
		return &TicketMigrated{}
	default:
		return nil
	}
}
