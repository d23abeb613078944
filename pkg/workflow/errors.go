package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrStageNotFound indicates the target stage does not belong to the ticket's process.
	ErrStageNotFound = errors.New("stage not found")

	// ErrInvalidTransition indicates the stage graph does not allow the move.
	ErrInvalidTransition = errors.New("transition not allowed")

	// ErrAlreadyInStage indicates a move to the ticket's current stage.
	ErrAlreadyInStage = errors.New("ticket is already in this stage")

	// ErrAlreadyInProcess indicates a migration to the ticket's current process.
	ErrAlreadyInProcess = errors.New("ticket is already in this process")

	// ErrProcessHasNoStages indicates a process without stages cannot hold tickets.
	ErrProcessHasNoStages = errors.New("process has no stages")

	// ErrInvalidGraph indicates a stage references a transition target outside its process.
	ErrInvalidGraph = errors.New("invalid stage graph")
)

// TransitionError carries the identifiers involved in a rejected move or migration.
type TransitionError struct {
	Op       string // "move" or "migrate"
	TicketID string
	From     string // stage id for moves, process id for migrations
	To       string
	Err      error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s ticket %s from %s to %s: %v", e.Op, e.TicketID, e.From, e.To, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

func (e *TransitionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}
