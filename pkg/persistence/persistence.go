// Package persistence provides the data storage abstraction for processes, tickets
// and recurring rules.
package persistence

import (
	"context"
	"time"

	"github.com/coderAhmedHamood/pipefy/pkg/models"
)

type Persistence interface {
	ProcessRepository() ProcessRepository
	TicketRepository() TicketRepository
	RuleRepository() RuleRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// ProcessRepository stores processes together with their stages and field definitions.
// Processes are always returned fully materialized.
type ProcessRepository interface {
	List(ctx context.Context) ([]*models.Process, error)
	GetByID(ctx context.Context, id string) (*models.Process, error)
	Save(ctx context.Context, process *models.Process) error
}

// Position is where a ticket sits: its process and current stage.
type Position struct {
	ProcessID string
	StageID   string
}

// TicketRepository stores tickets and their activity history.
type TicketRepository interface {
	// Create stores a new ticket and its creation activity. An empty ticket number
	// is assigned from the repository's sequence.
	Create(ctx context.Context, ticket *models.Ticket, activity *models.Activity) error

	GetByID(ctx context.Context, id string) (*models.Ticket, error)

	// Update writes the ticket and appends the activity as one unit. It fails with
	// ErrConcurrentUpdate when the stored ticket no longer sits at expected.
	Update(ctx context.Context, ticket *models.Ticket, expected Position, activity *models.Activity) error

	Activities(ctx context.Context, ticketID string) ([]*models.Activity, error)
}

// RuleRepository stores recurring rules and their execution state.
type RuleRepository interface {
	List(ctx context.Context) ([]*models.RecurringRule, error)
	GetByID(ctx context.Context, id string) (*models.RecurringRule, error)

	// Save inserts a rule or updates its operator-editable fields. Execution
	// counters and claims are left to Complete, Claim and Release.
	Save(ctx context.Context, rule *models.RecurringRule) error

	// Due returns active rules whose next execution is at or before now, that are
	// neither exhausted nor past their end date, and hold no live claim.
	Due(ctx context.Context, now time.Time) ([]*models.RecurringRule, error)

	// Claim takes the execution lease on a rule until the given instant. It returns
	// false when another live claim exists.
	Claim(ctx context.Context, id, token string, now, until time.Time) (bool, error)

	// Release drops the lease if it is still held with token.
	Release(ctx context.Context, id, token string) error

	// Complete records a materialization: execution count, last and next execution
	// dates. It fails with ErrConcurrentUpdate when the stored execution count is
	// not expectedCount. Any lease is cleared.
	Complete(ctx context.Context, rule *models.RecurringRule, expectedCount int) error
}
