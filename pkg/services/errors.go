// Package services orchestrates processes, tickets and recurring rules on top
// of the workflow core and the persistence layer.
package services

import (
	"errors"
	"fmt"

	"github.com/coderAhmedHamood/pipefy/pkg/fieldmap"
	"github.com/coderAhmedHamood/pipefy/pkg/persistence"
	"github.com/coderAhmedHamood/pipefy/pkg/recurrence"
	"github.com/coderAhmedHamood/pipefy/pkg/scheduler"
	"github.com/coderAhmedHamood/pipefy/pkg/workflow"
)

var (
	// ErrInvalidRequest indicates malformed input (400 Bad Request).
	ErrInvalidRequest = errors.New("invalid request")

	// ErrForbidden indicates the actor may not perform the action (403 Forbidden).
	ErrForbidden = errors.New("forbidden")
)

// Error codes reported to API clients.
const (
	CodeNotFound          = "NOT_FOUND"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeAlreadyInState    = "ALREADY_IN_STATE"
	CodeForbidden         = "FORBIDDEN"
	CodeScheduleConflict  = "SCHEDULE_CONFLICT"
	CodeConcurrentUpdate  = "CONCURRENT_UPDATE"
	CodeValidation        = "VALIDATION_ERROR"
	CodeRuleNotRunnable   = "RULE_NOT_RUNNABLE"
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, message string, err error) *ServiceError {
	if err == nil {
		err = ErrInvalidRequest
	}

	return &ServiceError{
		Op:      op,
		Code:    CodeValidation,
		Message: message,
		Err:     err,
	}
}

// IsNotFound reports a missing ticket, stage, process or rule (404).
func IsNotFound(err error) bool {
	return persistence.IsNotFound(err) || errors.Is(err, workflow.ErrStageNotFound)
}

// IsInvalidTransition reports a move the stage graph does not allow (400).
func IsInvalidTransition(err error) bool {
	return errors.Is(err, workflow.ErrInvalidTransition)
}

// IsAlreadyInState reports a no-op move or migration (400).
func IsAlreadyInState(err error) bool {
	return errors.Is(err, workflow.ErrAlreadyInStage) || errors.Is(err, workflow.ErrAlreadyInProcess)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, recurrence.ErrInvalidSchedule) ||
		errors.Is(err, fieldmap.ErrInvalidData) ||
		errors.Is(err, workflow.ErrInvalidGraph) ||
		errors.Is(err, workflow.ErrProcessHasNoStages) ||
		IsRuleNotRunnable(err)
}

// IsRuleNotRunnable reports a manual run of an inactive, exhausted or expired rule (400).
func IsRuleNotRunnable(err error) bool {
	return errors.Is(err, scheduler.ErrRuleInactive) ||
		errors.Is(err, scheduler.ErrRuleExhausted) ||
		errors.Is(err, scheduler.ErrRuleExpired)
}

// IsForbidden checks if an error should return HTTP 403.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsScheduleConflict reports a rule that is already executing (409).
func IsScheduleConflict(err error) bool {
	return errors.Is(err, scheduler.ErrAlreadyExecuting)
}

// IsConflictError checks if an error is a conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return IsScheduleConflict(err) || persistence.IsConcurrentUpdate(err)
}

// classify wraps a known domain error with its API code. Unknown errors pass
// through untouched and surface as internal errors.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return err
	}

	code := ""

	switch {
	case IsForbidden(err):
		code = CodeForbidden
	case IsNotFound(err):
		code = CodeNotFound
	case IsInvalidTransition(err):
		code = CodeInvalidTransition
	case IsAlreadyInState(err):
		code = CodeAlreadyInState
	case IsScheduleConflict(err):
		code = CodeScheduleConflict
	case persistence.IsConcurrentUpdate(err):
		code = CodeConcurrentUpdate
	case IsRuleNotRunnable(err):
		code = CodeRuleNotRunnable
	case IsValidationError(err):
		code = CodeValidation
	default:
		return err
	}

	return &ServiceError{Op: op, Code: code, Message: err.Error(), Err: err}
}

// Code returns the API code of err, or "" for unexpected errors.
func Code(err error) string {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Code
	}

	return ""
}
