package scheduler

import (
	"errors"
	"fmt"
)

var (
	ErrRuleInactive     = errors.New("recurring rule is inactive")
	ErrRuleExhausted    = errors.New("recurring rule reached its execution cap")
	ErrRuleExpired      = errors.New("recurring rule is past its end date")
	ErrRuleNotDue       = errors.New("recurring rule is not due")
	ErrAlreadyExecuting = errors.New("recurring rule is already executing")
)

// ExecutionError wraps an execution failure with the rule and trigger involved.
type ExecutionError struct {
	RuleID  string
	Trigger TriggerKind
	Err     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s execution of rule %s: %v", e.Trigger, e.RuleID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func (e *ExecutionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}
