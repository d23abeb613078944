package models

import (
	"fmt"
	"time"
)

// TicketPriority ranks tickets for the people working them.
type TicketPriority string

const (
	PriorityLow    TicketPriority = "low"
	PriorityMedium TicketPriority = "medium"
	PriorityHigh   TicketPriority = "high"
	PriorityUrgent TicketPriority = "urgent"
)

// TicketStatus is the coarse lifecycle status of a ticket.
type TicketStatus string

const (
	TicketStatusOpen TicketStatus = "open"
)

// Ticket is a unit of work progressing through the stages of one process.
// Data is keyed by FieldDefinition ID, never by field name.
type Ticket struct {
	ID             string         `json:"id"`
	TicketNumber   string         `json:"ticket_number"`
	ProcessID      string         `json:"process_id"`
	CurrentStageID string         `json:"current_stage_id"`
	Title          string         `json:"title"`
	Description    string         `json:"description,omitempty"`
	Status         TicketStatus   `json:"status"`
	Priority       TicketPriority `json:"priority"`
	Type           string         `json:"ticket_type,omitempty"`
	AssignedTo     *string        `json:"assigned_to,omitempty"`
	CreatedBy      string         `json:"created_by,omitempty"`
	DueDate        *time.Time     `json:"due_date,omitempty"`
	Data           map[string]any `json:"data"`
	CompletedAt    *time.Time     `json:"completed_at"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// FormatTicketNumber renders the n-th ticket number of a deployment.
func FormatTicketNumber(n int64) string {
	return fmt.Sprintf("TCK-%06d", n)
}

// Clone returns a shallow copy with its own data map.
func (t *Ticket) Clone() *Ticket {
	clone := *t

	clone.Data = make(map[string]any, len(t.Data))
	for k, v := range t.Data {
		clone.Data[k] = v
	}

	return &clone
}

// ActivityType classifies activity records.
type ActivityType string

const (
	ActivityCreated        ActivityType = "created"
	ActivityStageChanged   ActivityType = "stage_changed"
	ActivityProcessChanged ActivityType = "process_changed"
)

// Activity is an immutable, informational record appended to a ticket's history.
type Activity struct {
	ID          string         `json:"id"`
	TicketID    string         `json:"ticket_id"`
	Actor       string         `json:"actor"`
	Type        ActivityType   `json:"type"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// TicketDraft is the input of ticket creation, shared by manual creation and
// recurring rule materialization. Data may be keyed by field name, label or id.
type TicketDraft struct {
	ProcessID   string `validate:"required"`
	StageID     *string
	Title       string `validate:"required,min=1,max=255"`
	Description string
	Priority    TicketPriority `validate:"omitempty,oneof=low medium high urgent"`
	Type        string
	AssignedTo  *string
	DueDate     *time.Time
	Data        map[string]any
	CreatedBy   string

	// Origin records where the ticket came from, e.g. "manual" or "recurring_rule".
	Origin   string
	OriginID string
}

const (
	OriginManual        = "manual"
	OriginRecurringRule = "recurring_rule"
)
