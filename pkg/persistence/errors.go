// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrProcessNotFound indicates a process was not found by the given identifier.
	ErrProcessNotFound = errors.New("process not found")

	// ErrTicketNotFound indicates a ticket was not found by the given identifier.
	ErrTicketNotFound = errors.New("ticket not found")

	// ErrRuleNotFound indicates a recurring rule was not found by the given identifier.
	ErrRuleNotFound = errors.New("recurring rule not found")

	// ErrConcurrentUpdate indicates the stored entity changed since it was read.
	ErrConcurrentUpdate = errors.New("concurrent update")
)

// EntityError wraps repository errors with the entity they concern.
type EntityError struct {
	Op     string // Operation being performed (e.g., "GetByID", "Update", "Complete")
	Entity string // "process", "ticket" or "rule"
	ID     string
	Err    error
}

func (e *EntityError) Error() string {
	return fmt.Sprintf("%s operation failed for %s %s: %v", e.Op, e.Entity, e.ID, e.Err)
}

func (e *EntityError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for entity errors.
func (e *EntityError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewProcessError creates a process error with context.
func NewProcessError(op, id string, err error) *EntityError {
	return &EntityError{Op: op, Entity: "process", ID: id, Err: err}
}

// NewTicketError creates a ticket error with context.
func NewTicketError(op, id string, err error) *EntityError {
	return &EntityError{Op: op, Entity: "ticket", ID: id, Err: err}
}

// NewRuleError creates a rule error with context.
func NewRuleError(op, id string, err error) *EntityError {
	return &EntityError{Op: op, Entity: "rule", ID: id, Err: err}
}

// IsNotFound checks if an error indicates any entity was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProcessNotFound) ||
		errors.Is(err, ErrTicketNotFound) ||
		errors.Is(err, ErrRuleNotFound)
}

// IsConcurrentUpdate checks if an error indicates a lost optimistic update.
func IsConcurrentUpdate(err error) bool {
	return errors.Is(err, ErrConcurrentUpdate)
}
