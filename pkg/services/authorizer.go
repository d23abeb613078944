package services

import (
	"context"

	"github.com/coderAhmedHamood/pipefy/pkg/models"
)

// Action names an operation subject to authorization.
type Action string

const (
	ActionCreateTicket  Action = "ticket:create"
	ActionMoveTicket    Action = "ticket:move"
	ActionMigrateTicket Action = "ticket:migrate"
	ActionManageProcess Action = "process:manage"
	ActionManageRule    Action = "rule:manage"
	ActionRunRule       Action = "rule:run"
)

// Authorizer decides whether actor may perform action. Ticket is nil for
// actions that do not target a ticket. A refusal wraps ErrForbidden.
type Authorizer interface {
	Authorize(ctx context.Context, actor string, action Action, ticket *models.Ticket) error
}

// AllowAll permits every action.
type AllowAll struct{}

func (AllowAll) Authorize(context.Context, string, Action, *models.Ticket) error {
	return nil
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context, actor string, action Action, ticket *models.Ticket) error

func (f AuthorizerFunc) Authorize(ctx context.Context, actor string, action Action, ticket *models.Ticket) error {
	return f(ctx, actor, action, ticket)
}
