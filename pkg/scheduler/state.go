package scheduler

import (
	"time"

	"github.com/coderAhmedHamood/pipefy/pkg/models"
)

// State is the scheduling state of a rule, derived from its stored fields.
type State string

const (
	StatePending   State = "pending"
	StateDue       State = "due"
	StateExecuting State = "executing"
	StateExhausted State = "exhausted"
	StateInactive  State = "inactive"
	StateExpired   State = "expired"
)

// StateOf derives the state of rule at now. Inactive wins over every other
// state, then exhausted, then expired; a live claim means executing.
func StateOf(rule *models.RecurringRule, now time.Time) State {
	switch {
	case !rule.IsActive:
		return StateInactive
	case rule.Exhausted():
		return StateExhausted
	case rule.Expired(now):
		return StateExpired
	case rule.Claimed(now):
		return StateExecuting
	case rule.IsDue(now):
		return StateDue
	default:
		return StatePending
	}
}

// stateError maps blocking states to the error a trigger reports.
func stateError(state State) error {
	switch state {
	case StateInactive:
		return ErrRuleInactive
	case StateExhausted:
		return ErrRuleExhausted
	case StateExpired:
		return ErrRuleExpired
	default:
		return nil
	}
}
