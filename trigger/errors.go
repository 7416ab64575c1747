package trigger

import (
	"errors"
)

// Error represents a trigger lifecycle error.
type Error struct {
	Type      ErrorType
	TriggerID string
	Message   string
	Err       error // underlying store/driver error, if any
}

// ErrorType represents the category of error.
type ErrorType string

const (
	ErrorTypeValidation       ErrorType = "validation"
	ErrorTypeNotFound         ErrorType = "not_found"
	ErrorTypeUnauthorized     ErrorType = "unauthorized"
	ErrorTypeAlreadyFired     ErrorType = "already_fired"
	ErrorTypeConflict         ErrorType = "conflict"
	ErrorTypeStoreUnavailable ErrorType = "store_unavailable"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsValidationError checks if an error is a condition/action validation error.
func IsValidationError(err error) bool {
	return isType(err, ErrorTypeValidation)
}

// IsNotFoundError checks if an error refers to an unknown trigger.
func IsNotFoundError(err error) bool {
	return isType(err, ErrorTypeNotFound)
}

// IsUnauthorizedError checks if an error is an owner mismatch.
func IsUnauthorizedError(err error) bool {
	return isType(err, ErrorTypeUnauthorized)
}

// IsAlreadyFiredError checks if an error is the at-most-once firing guard.
func IsAlreadyFiredError(err error) bool {
	return isType(err, ErrorTypeAlreadyFired)
}

// IsConflictError checks if an error is a non-pending status conflict
// (cancelled or expired trigger on a transition attempt).
func IsConflictError(err error) bool {
	return isType(err, ErrorTypeConflict)
}

// IsStoreUnavailableError checks if an error is a store connectivity failure.
func IsStoreUnavailableError(err error) bool {
	return isType(err, ErrorTypeStoreUnavailable)
}

func isType(err error, t ErrorType) bool {
	var trigErr *Error
	if errors.As(err, &trigErr) {
		return trigErr.Type == t
	}
	return false
}

// NewValidationError creates a registration validation error.
func NewValidationError(message string) *Error {
	return &Error{
		Type:    ErrorTypeValidation,
		Message: message,
	}
}

// NewNotFoundError creates an unknown-trigger error.
func NewNotFoundError(id string) *Error {
	return &Error{
		Type:      ErrorTypeNotFound,
		TriggerID: id,
		Message:   "trigger not found: " + id,
	}
}

// NewUnauthorizedError creates an owner mismatch error.
func NewUnauthorizedError(id, owner string) *Error {
	return &Error{
		Type:      ErrorTypeUnauthorized,
		TriggerID: id,
		Message:   "trigger " + id + " is not owned by " + owner,
	}
}

// NewStoreUnavailableError wraps a store connectivity failure.
func NewStoreUnavailableError(message string, err error) *Error {
	return &Error{
		Type:    ErrorTypeStoreUnavailable,
		Message: message,
		Err:     err,
	}
}

// NewStatusConflictError classifies a failed pending transition by the status
// the trigger actually holds. Fired triggers produce the at-most-once
// AlreadyFired guard; cancelled and expired produce a conflict.
func NewStatusConflictError(id string, current Status) *Error {
	if current == StatusFired {
		return &Error{
			Type:      ErrorTypeAlreadyFired,
			TriggerID: id,
			Message:   "trigger " + id + " already fired",
		}
	}
	return &Error{
		Type:      ErrorTypeConflict,
		TriggerID: id,
		Message:   "trigger " + id + " is " + string(current) + ", not pending",
	}
}
