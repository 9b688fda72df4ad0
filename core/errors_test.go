package core

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestErrorTaxonomyMatching(t *testing.T) {
	verr := NewValidationError("keyword", "must not be empty")
	serr := &StateConflictError{Entity: "ticket", ID: 7, Reason: "already resolved"}
	nerr := &NotFoundError{Resource: "ticket", ID: "7"}
	derr := &DependencyError{Dependency: "smtp", Err: errors.New("connection refused")}

	assert.True(t, IsValidation(verr))
	assert.True(t, IsStateConflict(serr))
	assert.True(t, IsNotFound(nerr))

	// Wrapped errors still match.
	wrapped := fmt.Errorf("close ticket: %w", serr)
	assert.True(t, IsStateConflict(wrapped))
	assert.False(t, IsValidation(wrapped))

	// DependencyError unwraps to its cause.
	assert.ErrorContains(t, derr, "smtp unavailable")
	assert.ErrorContains(t, errors.Unwrap(derr), "connection refused")
}

func TestCircuitBreakerOpensAfterFailures(t *testing.T) {
	cb := MustNewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures:         2,
		Timeout:             time.Minute,
		MaxHalfOpenRequests: 1,
	})

	assert.NoError(t, cb.Allow())
	cb.RecordFailure()
	assert.NoError(t, cb.Allow())
	cb.RecordFailure()

	assert.Equal(t, CircuitOpen, cb.State())
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)

	cb.RecordSuccess()
	assert.Equal(t, CircuitClosed, cb.State())
	assert.NoError(t, cb.Allow())
}
