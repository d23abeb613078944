package workflow

import (
	"fmt"
	"time"

	"github.com/coderAhmedHamood/pipefy/pkg/models"
)

// MoveRequest asks to move a ticket to another stage of its process.
type MoveRequest struct {
	TargetStageID string
	Comment       string
	Actor         string

	// ValidateTransitions defaults to true when nil.
	ValidateTransitions *bool
}

func (r MoveRequest) validate() bool {
	return r.ValidateTransitions == nil || *r.ValidateTransitions
}

// MovePlan is the complete state change of an accepted move. It is applied as
// one unit: ticket fields and activity together, or nothing.
type MovePlan struct {
	Ticket    *models.Ticket // updated copy
	FromStage *models.Stage
	ToStage   *models.Stage
	Activity  *models.Activity
	Reopened  bool
	Completed bool
}

// PlanMove validates a move against the stage graph and computes its effects.
// The input ticket is not modified.
func PlanMove(graph *Graph, ticket *models.Ticket, req MoveRequest, now time.Time) (*MovePlan, error) {
	reject := func(err error) error {
		return &TransitionError{
			Op:       "move",
			TicketID: ticket.ID,
			From:     ticket.CurrentStageID,
			To:       req.TargetStageID,
			Err:      err,
		}
	}

	if ticket.CurrentStageID == req.TargetStageID {
		return nil, reject(ErrAlreadyInStage)
	}

	target := graph.Stage(req.TargetStageID)
	if target == nil {
		return nil, reject(ErrStageNotFound)
	}

	if !graph.CanTransition(ticket.CurrentStageID, req.TargetStageID, req.validate()) {
		// A ticket sitting on a stage that no longer exists can only leave it unchecked.
		if graph.HasStage(ticket.CurrentStageID) || req.validate() {
			return nil, reject(ErrInvalidTransition)
		}
	}

	from := graph.Stage(ticket.CurrentStageID)
	wasCompleted := ticket.CompletedAt != nil

	updated := ticket.Clone()
	updated.CurrentStageID = target.ID
	updated.UpdatedAt = now

	if target.IsFinal {
		completedAt := now
		updated.CompletedAt = &completedAt
	} else {
		updated.CompletedAt = nil
	}

	fromName := ticket.CurrentStageID
	if from != nil {
		fromName = from.Name
	}

	metadata := map[string]any{
		"from_stage_id":        ticket.CurrentStageID,
		"to_stage_id":          target.ID,
		"from_stage_name":      fromName,
		"to_stage_name":        target.Name,
		"validate_transitions": req.validate(),
	}
	if req.Comment != "" {
		metadata["comment"] = req.Comment
	}

	description := fmt.Sprintf("Moved from %q to %q", fromName, target.Name)
	if req.Comment != "" {
		description += ": " + req.Comment
	}

	return &MovePlan{
		Ticket:    updated,
		FromStage: from,
		ToStage:   target,
		Activity: &models.Activity{
			TicketID:    ticket.ID,
			Actor:       req.Actor,
			Type:        models.ActivityStageChanged,
			Description: description,
			Metadata:    metadata,
			CreatedAt:   now,
		},
		Reopened:  wasCompleted && !target.IsFinal,
		Completed: target.IsFinal,
	}, nil
}
