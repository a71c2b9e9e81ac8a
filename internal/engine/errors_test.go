package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpError_Formatting(t *testing.T) {
	assert.Equal(t, `NOT_FOUND: run "r1" not found (entity=run)`,
		NewNotFoundError("run", "r1").Error())
	assert.Equal(t, "VALIDATION: dose must be positive, got 0",
		NewValidationError("dose must be positive, got 0").Error())
	assert.Equal(t, "CONCURRENCY_CONFLICT: another reset is in flight (run=r1)",
		NewConcurrencyConflictError("r1", "another reset is in flight").Error())
	assert.Equal(t, "STATUS_CONFLICT: cannot complete a archived run (run=r1)",
		NewStatusConflictError("r1", "archived", "complete").Error())
	assert.Equal(t, `SERIALIZATION: snapshot "s1" failed verification: document hash mismatch (entity=snapshot)`,
		NewSerializationError("snapshot", "s1", errors.New("document hash mismatch")).Error())
	assert.Equal(t, "TRANSACTION: reset run rolled back: disk full (run=r1)",
		NewTransactionError("r1", "reset run", errors.New("disk full")).Error())
}

func TestOpError_StatusConflictDetails(t *testing.T) {
	err := NewStatusConflictError("r1", "paused", "record vitals in")
	assert.Equal(t, "paused", err.Details["status"])
	assert.Equal(t, "r1", err.RunID)
}

func TestErrorPredicates_MatchWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("record vitals: %w", NewValidationError("bad reading"))
	assert.True(t, IsValidation(wrapped))
	assert.False(t, IsNotFound(wrapped))

	deep := fmt.Errorf("outer: %w", fmt.Errorf("inner: %w", NewNotFoundError("run", "r1")))
	assert.True(t, IsNotFound(deep))

	assert.True(t, IsConcurrencyConflict(NewConcurrencyConflictError("r1", "racing")))
	assert.True(t, IsStatusConflict(NewStatusConflictError("r1", "archived", "reset")))

	assert.True(t, IsSerialization(fmt.Errorf("get snapshot: %w",
		NewSerializationError("snapshot", "s1", errors.New("document hash mismatch")))))
	assert.True(t, IsTransaction(fmt.Errorf("cli: %w",
		NewTransactionError("r1", "launch run", errors.New("constraint failed")))))
}

func TestOpError_UnwrapExposesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := NewTransactionError("r1", "reset run", cause)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, fmt.Errorf("reset: %w", err), cause)

	// Constructors that carry no cause unwrap to nil.
	assert.Nil(t, errors.Unwrap(NewValidationError("bad reading")))
}

func TestErrorPredicates_RejectForeignErrors(t *testing.T) {
	err := errors.New("plain failure")
	assert.False(t, IsNotFound(err))
	assert.False(t, IsValidation(err))
	assert.False(t, IsConcurrencyConflict(err))
	assert.False(t, IsStatusConflict(err))
	assert.False(t, IsSerialization(err))
	assert.False(t, IsTransaction(err))
	assert.False(t, IsNotFound(nil))
}
