package models

import "time"

// TicketTemplate is the blueprint a recurring rule materializes tickets from.
// Data is stored keyed by field id; AssignedTo and StageID may arrive as empty
// strings from forms and are normalized before use.
type TicketTemplate struct {
	Title       string         `json:"title"                 validate:"required,min=1"`
	Description string         `json:"description,omitempty"`
	Priority    TicketPriority `json:"priority,omitempty"    validate:"omitempty,oneof=low medium high urgent"`
	AssignedTo  *string        `json:"assigned_to,omitempty"`
	StageID     *string        `json:"stage_id,omitempty"`
	TicketType  string         `json:"ticket_type,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	DueInDays   *int           `json:"due_in_days,omitempty" validate:"omitempty,min=0"`
}

// RecurringRule periodically materializes tickets from a template.
type RecurringRule struct {
	ID          string         `json:"id"`
	ProcessID   string         `json:"process_id"    validate:"required"`
	Name        string         `json:"name"          validate:"required,min=2"`
	Description string         `json:"description,omitempty"`
	Template    TicketTemplate `json:"template"`
	Schedule    Schedule       `json:"schedule"`
	StartDate   time.Time      `json:"start_date"`
	EndDate     *time.Time     `json:"end_date,omitempty"`
	IsActive    bool           `json:"is_active"`

	// ExecutionCount counts successful materializations.
	ExecutionCount int `json:"execution_count"`

	// MaxExecutions caps ExecutionCount; nil means unlimited.
	MaxExecutions *int `json:"max_executions,omitempty" validate:"omitempty,min=1"`

	LastExecutionDate *time.Time `json:"last_execution_date,omitempty"`
	NextExecutionDate *time.Time `json:"next_execution_date,omitempty"`

	// ClaimToken and ClaimedUntil hold the execution lease.
	ClaimToken   *string    `json:"-"`
	ClaimedUntil *time.Time `json:"claimed_until,omitempty"`

	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Exhausted reports whether the rule reached its run cap.
func (r *RecurringRule) Exhausted() bool {
	return r.MaxExecutions != nil && r.ExecutionCount >= *r.MaxExecutions
}

// Expired reports whether now is past the rule's end date.
func (r *RecurringRule) Expired(now time.Time) bool {
	return r.EndDate != nil && now.After(*r.EndDate)
}

// Claimed reports whether an execution lease is held at now.
func (r *RecurringRule) Claimed(now time.Time) bool {
	return r.ClaimedUntil != nil && r.ClaimedUntil.After(now)
}

// IsDue reports whether the rule should fire at now.
func (r *RecurringRule) IsDue(now time.Time) bool {
	return r.IsActive &&
		!r.Exhausted() &&
		!r.Expired(now) &&
		r.NextExecutionDate != nil &&
		!r.NextExecutionDate.After(now)
}
