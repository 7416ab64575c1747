package memory

import (
	"errors"
	"fmt"
)

// ErrorType classifies memory bank failures.
type ErrorType string

const (
	// ErrorTypeIndexNotBuilt indicates a search against a user whose index
	// has not been built since the last history change.
	ErrorTypeIndexNotBuilt ErrorType = "index_not_built"
	// ErrorTypeNotFound indicates the user has no memory document.
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeStoreUnavailable indicates the backing store could not be
	// reached or the document could not be decoded.
	ErrorTypeStoreUnavailable ErrorType = "store_unavailable"
	// ErrorTypeEmbed indicates the embedding backend failed.
	ErrorTypeEmbed ErrorType = "embed"
)

// Error is a structured memory error.
type Error struct {
	Type    ErrorType
	UserID  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func isType(err error, t ErrorType) bool {
	var me *Error
	if errors.As(err, &me) {
		return me.Type == t
	}
	return false
}

// IsIndexNotBuiltError checks if the error is an index-not-built error.
func IsIndexNotBuiltError(err error) bool {
	return isType(err, ErrorTypeIndexNotBuilt)
}

// IsNotFoundError checks if the error is a not-found error.
func IsNotFoundError(err error) bool {
	return isType(err, ErrorTypeNotFound)
}

// IsStoreUnavailableError checks if the error is a store-availability error.
func IsStoreUnavailableError(err error) bool {
	return isType(err, ErrorTypeStoreUnavailable)
}

// IsEmbedError checks if the error is an embedding failure.
func IsEmbedError(err error) bool {
	return isType(err, ErrorTypeEmbed)
}

// NewIndexNotBuiltError creates an error for a search ahead of the index.
func NewIndexNotBuiltError(userID string) *Error {
	return &Error{
		Type:    ErrorTypeIndexNotBuilt,
		UserID:  userID,
		Message: fmt.Sprintf("no index built for user %q; call build_index first", userID),
	}
}

// NewNotFoundError creates an error for a user without a memory document.
func NewNotFoundError(userID string) *Error {
	return &Error{
		Type:    ErrorTypeNotFound,
		UserID:  userID,
		Message: fmt.Sprintf("no memory for user %q", userID),
	}
}

// NewStoreUnavailableError wraps a store failure.
func NewStoreUnavailableError(message string, err error) *Error {
	return &Error{
		Type:    ErrorTypeStoreUnavailable,
		Message: message,
		Err:     err,
	}
}

// NewEmbedError wraps an embedding backend failure.
func NewEmbedError(userID string, err error) *Error {
	return &Error{
		Type:    ErrorTypeEmbed,
		UserID:  userID,
		Message: "embedding failed",
		Err:     err,
	}
}
