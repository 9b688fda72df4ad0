package core

import (
	"errors"
	"fmt"
)

// The error taxonomy. Every failing core operation returns one of these four
// shapes so callers (and the HTTP layer) can map failures without string
// matching:
//
//   - ValidationError: malformed input, rejected before any mutation.
//   - StateConflictError: an illegal state transition, entity unchanged.
//   - NotFoundError: unknown entity id.
//   - DependencyError: an external collaborator failed; any state change
//     committed before the dependency call stands.

// ValidationError describes malformed input. It is always returned
// synchronously, before any part of the mutation is applied.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for a named field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// StateConflictError describes a transition the ticket state machine forbids.
// The ticket is guaranteed unchanged.
type StateConflictError struct {
	Entity string
	ID     int64
	Reason string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("%s %d: %s", e.Entity, e.ID, e.Reason)
}

// NotFoundError identifies a lookup that matched nothing.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// DependencyError wraps a failure of an external collaborator (notification
// dispatch, storage backend). It never implies a rollback of state already
// committed; callers may retry the dependency step on its own.
type DependencyError struct {
	Dependency string
	Err        error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Dependency, e.Err)
}

func (e *DependencyError) Unwrap() error { return e.Err }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsStateConflict reports whether err is (or wraps) a StateConflictError.
func IsStateConflict(err error) bool {
	var se *StateConflictError
	return errors.As(err, &se)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}
