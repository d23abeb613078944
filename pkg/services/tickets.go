package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/coderAhmedHamood/pipefy/pkg/events"
	"github.com/coderAhmedHamood/pipefy/pkg/fieldmap"
	"github.com/coderAhmedHamood/pipefy/pkg/metrics"
	"github.com/coderAhmedHamood/pipefy/pkg/models"
	"github.com/coderAhmedHamood/pipefy/pkg/otelhelper"
	"github.com/coderAhmedHamood/pipefy/pkg/persistence"
	"github.com/coderAhmedHamood/pipefy/pkg/scheduler"
	"github.com/coderAhmedHamood/pipefy/pkg/workflow"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// Tickets creates tickets and moves them through and across processes.
type Tickets struct {
	common

	processes persistence.ProcessRepository
	tickets   persistence.TicketRepository
}

var _ scheduler.TicketCreator = (*Tickets)(nil)

func NewTickets(processes persistence.ProcessRepository, tickets persistence.TicketRepository, logger *slog.Logger, opts ...Option) *Tickets {
	return &Tickets{
		common:    newCommon(logger, "ticket_service", opts),
		processes: processes,
		tickets:   tickets,
	}
}

// Create is the single ticket creation path for manual and scheduled tickets.
// Data may be keyed by field name, label or id and is stored by id. Manual
// drafts must only reference known fields and carry every required field.
func (s *Tickets) Create(ctx context.Context, draft models.TicketDraft) (*models.Ticket, error) {
	const op = "CreateTicket"

	if draft.Origin == "" {
		draft.Origin = models.OriginManual
	}

	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "tickets.create",
		attribute.String(otelhelper.ProcessIDKey, draft.ProcessID),
		attribute.String(otelhelper.ActorKey, draft.CreatedBy),
	)
	defer span.End()

	ticket, err := s.create(ctx, op, draft)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, classify(op, err)
	}

	span.SetAttributes(attribute.String(otelhelper.TicketIDKey, ticket.ID))

	return ticket, nil
}

func (s *Tickets) create(ctx context.Context, op string, draft models.TicketDraft) (*models.Ticket, error) {
	draft.Title = strings.TrimSpace(draft.Title)

	if err := s.validate.Struct(draft); err != nil {
		return nil, validationError(op, err)
	}

	process, err := s.processes.GetByID(ctx, draft.ProcessID)
	if err != nil {
		return nil, err
	}

	graph := workflow.NewGraph(process)

	var stage *models.Stage

	if stageID := scheduler.NormalizeOptional(draft.StageID); stageID != nil {
		stage = graph.Stage(*stageID)
		if stage == nil {
			return nil, fmt.Errorf("%w: stage %s is not part of process %s", workflow.ErrStageNotFound, *stageID, process.ID)
		}
	} else {
		stage, err = graph.InitialStage()
		if err != nil {
			return nil, fmt.Errorf("%w: process %s", err, process.ID)
		}
	}

	manual := draft.Origin == models.OriginManual
	mapper := fieldmap.New(process.Fields)

	data, dropped := mapper.ToStoredKeys(draft.Data)
	if len(dropped) > 0 {
		sort.Strings(dropped)

		if manual {
			return nil, NewValidationError(op,
				fmt.Sprintf("unknown fields for process %s: %s", process.ID, strings.Join(dropped, ", ")), ErrInvalidRequest)
		}

		s.logger.WarnContext(ctx, "Dropped unknown fields", "process_id", process.ID, "fields", dropped)
	}

	if err := mapper.Validate(data, manual); err != nil {
		return nil, err
	}

	priority := draft.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate ticket ID: %w", err)
	}

	now := s.clock.Now().UTC()
	ticket := &models.Ticket{
		ID:             id.String(),
		ProcessID:      process.ID,
		CurrentStageID: stage.ID,
		Title:          draft.Title,
		Description:    draft.Description,
		Status:         models.TicketStatusOpen,
		Priority:       priority,
		Type:           draft.Type,
		AssignedTo:     scheduler.NormalizeOptional(draft.AssignedTo),
		CreatedBy:      draft.CreatedBy,
		DueDate:        draft.DueDate,
		Data:           data,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if stage.IsFinal {
		ticket.CompletedAt = &now
	}

	if err := s.authorize(ctx, op, draft.CreatedBy, ActionCreateTicket, ticket); err != nil {
		return nil, err
	}

	metadata := map[string]any{
		"stage_id":   stage.ID,
		"stage_name": stage.Name,
		"origin":     draft.Origin,
	}
	if draft.OriginID != "" {
		metadata["origin_id"] = draft.OriginID
	}

	activity := &models.Activity{
		Actor:       draft.CreatedBy,
		Type:        models.ActivityCreated,
		Description: fmt.Sprintf("Created in stage %q", stage.Name),
		Metadata:    metadata,
		CreatedAt:   now,
	}

	if err := s.tickets.Create(ctx, ticket, activity); err != nil {
		return nil, err
	}

	s.metrics.RecordTicketCreated(draft.Origin)
	s.logger.InfoContext(ctx, "Ticket created",
		"ticket_id", ticket.ID,
		"ticket_number", ticket.TicketNumber,
		"process_id", process.ID,
		"stage_id", stage.ID,
		"origin", draft.Origin)

	s.notifier.Notify(ctx, ticket.ID, events.NewTicketCreated(ticket, draft.CreatedBy, draft.Origin, draft.OriginID, now))

	return ticket, nil
}

func (s *Tickets) Get(ctx context.Context, id string) (*models.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, classify("GetTicket", err)
	}

	return ticket, nil
}

// Activities returns the history of a ticket, oldest first.
func (s *Tickets) Activities(ctx context.Context, ticketID string) ([]*models.Activity, error) {
	const op = "ListActivities"

	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		return nil, classify(op, err)
	}

	activities, err := s.tickets.Activities(ctx, ticketID)
	if err != nil {
		return nil, classify(op, err)
	}

	return activities, nil
}

// MoveInput asks to move a ticket to another stage of its process.
type MoveInput struct {
	TargetStageID       string `validate:"required"`
	Comment             string `validate:"max=2000"`
	ValidateTransitions *bool
	Actor               string
}

// Move applies a stage transition. The ticket update and its activity record
// are stored together; a concurrent change of the ticket's position makes the
// move fail with a conflict instead of overwriting it.
func (s *Tickets) Move(ctx context.Context, ticketID string, input MoveInput) (*models.Ticket, error) {
	const op = "MoveTicket"

	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "tickets.move",
		attribute.String(otelhelper.TicketIDKey, ticketID),
		attribute.String(otelhelper.StageIDKey, input.TargetStageID),
		attribute.String(otelhelper.ActorKey, input.Actor),
	)
	defer span.End()

	ticket, err := s.move(ctx, op, ticketID, input)

	s.metrics.RecordMove(resultOf(err))

	if err != nil {
		otelhelper.SetError(span, err)

		return nil, classify(op, err)
	}

	return ticket, nil
}

func (s *Tickets) move(ctx context.Context, op, ticketID string, input MoveInput) (*models.Ticket, error) {
	input.TargetStageID = strings.TrimSpace(input.TargetStageID)

	if err := s.validate.Struct(input); err != nil {
		return nil, validationError(op, err)
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	process, err := s.processes.GetByID(ctx, ticket.ProcessID)
	if err != nil {
		return nil, err
	}

	if err := s.authorize(ctx, op, input.Actor, ActionMoveTicket, ticket); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()

	plan, err := workflow.PlanMove(workflow.NewGraph(process), ticket, workflow.MoveRequest{
		TargetStageID:       input.TargetStageID,
		Comment:             strings.TrimSpace(input.Comment),
		Actor:               input.Actor,
		ValidateTransitions: input.ValidateTransitions,
	}, now)
	if err != nil {
		return nil, err
	}

	expected := persistence.Position{ProcessID: ticket.ProcessID, StageID: ticket.CurrentStageID}
	if err := s.tickets.Update(ctx, plan.Ticket, expected, plan.Activity); err != nil {
		return nil, err
	}

	fromName := ticket.CurrentStageID
	if plan.FromStage != nil {
		fromName = plan.FromStage.Name
	}

	s.logger.InfoContext(ctx, "Ticket moved",
		"ticket_id", ticket.ID,
		"from_stage_id", ticket.CurrentStageID,
		"to_stage_id", plan.ToStage.ID,
		"actor", input.Actor)

	s.notifier.Notify(ctx, ticket.ID, events.NewTicketMoved(plan.Ticket, input.Actor,
		ticket.CurrentStageID, fromName, plan.ToStage.Name, strings.TrimSpace(input.Comment), now))

	switch {
	case plan.Completed:
		s.notifier.Notify(ctx, ticket.ID, events.NewTicketCompleted(plan.Ticket, input.Actor, now))
	case plan.Reopened:
		s.notifier.Notify(ctx, ticket.ID, events.NewTicketReopened(plan.Ticket, input.Actor, now))
	}

	return plan.Ticket, nil
}

// MigrateInput asks to move a ticket into another process.
type MigrateInput struct {
	TargetProcessID string `validate:"required"`
	RemapFields     bool
	Actor           string
}

// MigrationResult is the migrated ticket plus the data keys the target process
// does not define.
type MigrationResult struct {
	Ticket         *models.Ticket `json:"ticket"`
	OrphanedFields []string       `json:"orphaned_fields"`
}

// Migrate re-anchors a ticket at the initial stage of another process. The
// source stage graph is not consulted.
func (s *Tickets) Migrate(ctx context.Context, ticketID string, input MigrateInput) (*MigrationResult, error) {
	const op = "MigrateTicket"

	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "tickets.migrate",
		attribute.String(otelhelper.TicketIDKey, ticketID),
		attribute.String(otelhelper.TargetIDKey, input.TargetProcessID),
		attribute.Bool(otelhelper.RemapFieldKey, input.RemapFields),
		attribute.String(otelhelper.ActorKey, input.Actor),
	)
	defer span.End()

	result, err := s.migrate(ctx, op, ticketID, input)

	s.metrics.RecordMigration(resultOf(err))

	if err != nil {
		otelhelper.SetError(span, err)

		return nil, classify(op, err)
	}

	return result, nil
}

func (s *Tickets) migrate(ctx context.Context, op, ticketID string, input MigrateInput) (*MigrationResult, error) {
	input.TargetProcessID = strings.TrimSpace(input.TargetProcessID)

	if err := s.validate.Struct(input); err != nil {
		return nil, validationError(op, err)
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	source, err := s.processes.GetByID(ctx, ticket.ProcessID)
	if err != nil {
		return nil, err
	}

	var target *models.Process

	if input.TargetProcessID == ticket.ProcessID {
		target = source
	} else if target, err = s.processes.GetByID(ctx, input.TargetProcessID); err != nil {
		return nil, err
	}

	if err := s.authorize(ctx, op, input.Actor, ActionMigrateTicket, ticket); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()

	plan, err := workflow.PlanMigration(ticket, workflow.NewGraph(source), workflow.NewGraph(target), workflow.MigrateRequest{
		TargetProcessID: input.TargetProcessID,
		Actor:           input.Actor,
		RemapFields:     input.RemapFields,
	}, now)
	if err != nil {
		return nil, err
	}

	expected := persistence.Position{ProcessID: ticket.ProcessID, StageID: ticket.CurrentStageID}
	if err := s.tickets.Update(ctx, plan.Ticket, expected, plan.Activity); err != nil {
		return nil, err
	}

	if len(plan.OrphanedField) > 0 {
		s.logger.WarnContext(ctx, "Migrated ticket keeps data unknown to the target process",
			"ticket_id", ticket.ID, "process_id", target.ID, "fields", plan.OrphanedField)
	}

	s.logger.InfoContext(ctx, "Ticket migrated",
		"ticket_id", ticket.ID,
		"from_process_id", source.ID,
		"to_process_id", target.ID,
		"to_stage_id", plan.TargetStage.ID,
		"actor", input.Actor)

	s.notifier.Notify(ctx, ticket.ID, events.NewTicketMigrated(plan.Ticket, input.Actor,
		source.ID, ticket.CurrentStageID, plan.OrphanedField, now))

	return &MigrationResult{Ticket: plan.Ticket, OrphanedFields: plan.OrphanedField}, nil
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case IsConflictError(err):
		return metrics.ResultConflict
	case IsNotFound(err), IsInvalidTransition(err), IsAlreadyInState(err), IsValidationError(err), IsForbidden(err):
		return metrics.ResultRejected
	default:
		return metrics.ResultError
	}
}
