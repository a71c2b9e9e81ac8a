package engine

import (
	"errors"
	"fmt"
)

// OpError represents an error detected while executing a lifecycle operation.
//
// Operation errors include:
//   - Not found: template, snapshot, run, patient, or barcode missing
//   - Validation: input outside clinical ranges or unknown references
//   - Concurrency conflict: two resets racing on the same run
//   - Status conflict: operation not permitted in the run's current status
//   - Serialization: a stored document failed decoding or hash verification
//   - Transaction: a multi-step store transaction failed and rolled back
//
// OpError includes structured fields for diagnostics and recovery.
type OpError struct {
	// Code identifies the error category.
	Code OpErrorCode

	// Message is a human-readable description.
	Message string

	// RunID identifies the affected run, when applicable.
	RunID string

	// Entity identifies the affected entity kind (template, snapshot, patient, barcode, alert).
	Entity string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, when one exists.
	Err error
}

// OpErrorCode categorizes operation errors.
type OpErrorCode string

const (
	// ErrCodeNotFound indicates a referenced entity does not exist or is
	// outside the caller's tenant.
	ErrCodeNotFound OpErrorCode = "NOT_FOUND"

	// ErrCodeValidation indicates input failed a validation rule.
	ErrCodeValidation OpErrorCode = "VALIDATION"

	// ErrCodeConcurrencyConflict indicates two mutations raced and the
	// caller should retry.
	ErrCodeConcurrencyConflict OpErrorCode = "CONCURRENCY_CONFLICT"

	// ErrCodeStatusConflict indicates the run's status forbids the operation.
	ErrCodeStatusConflict OpErrorCode = "STATUS_CONFLICT"

	// ErrCodeSerialization indicates a stored document failed canonical
	// decoding or hash verification: the database was modified outside the
	// engine.
	ErrCodeSerialization OpErrorCode = "SERIALIZATION"

	// ErrCodeTransaction indicates a multi-step store transaction failed
	// and was rolled back; no partial state was persisted.
	ErrCodeTransaction OpErrorCode = "TRANSACTION"
)

// Error implements the error interface.
func (e *OpError) Error() string {
	if e.RunID != "" {
		return fmt.Sprintf("%s: %s (run=%s)", e.Code, e.Message, e.RunID)
	}
	if e.Entity != "" {
		return fmt.Sprintf("%s: %s (entity=%s)", e.Code, e.Message, e.Entity)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *OpError) Unwrap() error {
	return e.Err
}

// IsNotFound returns true if the error is a not-found error.
// Uses errors.As to handle wrapped errors.
func IsNotFound(err error) bool {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Code == ErrCodeNotFound
	}
	return false
}

// IsValidation returns true if the error is a validation error.
// Uses errors.As to handle wrapped errors.
func IsValidation(err error) bool {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Code == ErrCodeValidation
	}
	return false
}

// IsConcurrencyConflict returns true if the error is a concurrency conflict.
// Uses errors.As to handle wrapped errors.
func IsConcurrencyConflict(err error) bool {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Code == ErrCodeConcurrencyConflict
	}
	return false
}

// IsStatusConflict returns true if the error is a status conflict.
// Uses errors.As to handle wrapped errors.
func IsStatusConflict(err error) bool {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Code == ErrCodeStatusConflict
	}
	return false
}

// IsSerialization returns true if the error is a serialization error.
// Uses errors.As to handle wrapped errors.
func IsSerialization(err error) bool {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Code == ErrCodeSerialization
	}
	return false
}

// IsTransaction returns true if the error is a transaction error.
// Uses errors.As to handle wrapped errors.
func IsTransaction(err error) bool {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Code == ErrCodeTransaction
	}
	return false
}

// NewNotFoundError creates an OpError for a missing entity.
func NewNotFoundError(entity, id string) *OpError {
	return &OpError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s %q not found", entity, id),
		Entity:  entity,
	}
}

// NewValidationError creates an OpError for invalid input.
func NewValidationError(message string) *OpError {
	return &OpError{
		Code:    ErrCodeValidation,
		Message: message,
	}
}

// NewConcurrencyConflictError creates an OpError for racing mutations.
func NewConcurrencyConflictError(runID, message string) *OpError {
	return &OpError{
		Code:    ErrCodeConcurrencyConflict,
		Message: message,
		RunID:   runID,
	}
}

// NewStatusConflictError creates an OpError for a status-forbidden operation.
func NewStatusConflictError(runID, status, op string) *OpError {
	return &OpError{
		Code:    ErrCodeStatusConflict,
		Message: fmt.Sprintf("cannot %s a %s run", op, status),
		RunID:   runID,
		Details: map[string]string{"status": status},
	}
}

// NewSerializationError creates an OpError for a stored document that failed
// decoding or hash verification.
func NewSerializationError(entity, id string, err error) *OpError {
	return &OpError{
		Code:    ErrCodeSerialization,
		Message: fmt.Sprintf("%s %q failed verification: %v", entity, id, err),
		Entity:  entity,
		Err:     err,
	}
}

// NewTransactionError creates an OpError for a rolled-back store transaction.
func NewTransactionError(runID, op string, err error) *OpError {
	return &OpError{
		Code:    ErrCodeTransaction,
		Message: fmt.Sprintf("%s rolled back: %v", op, err),
		RunID:   runID,
		Err:     err,
	}
}
