// Package oracle provides the model backends for embeddings and text
// summaries. Every backend failure surfaces as an *Error so callers can
// tell model trouble apart from their own.
package oracle

import (
	"errors"
	"fmt"
)

// Error is a structured model backend error.
type Error struct {
	Provider string // "ollama", "openai", "anthropic"; empty for parse errors
	Op       string // "embed", "summarize", "parse"
	Message  string
	Err      error
}

func (e *Error) Error() string {
	prefix := "oracle"
	if e.Provider != "" {
		prefix = "oracle/" + e.Provider
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", prefix, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", prefix, e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsOracleError checks whether the error came from a model backend or from
// interpreting its output.
func IsOracleError(err error) bool {
	var oe *Error
	return errors.As(err, &oe)
}

// NewEmbedError wraps an embedding call failure.
func NewEmbedError(provider string, err error) *Error {
	return &Error{Provider: provider, Op: "embed", Message: "embedding request failed", Err: err}
}

// NewSummarizeError wraps a text generation failure.
func NewSummarizeError(provider string, err error) *Error {
	return &Error{Provider: provider, Op: "summarize", Message: "summary request failed", Err: err}
}

// NewParseError marks model output that does not satisfy the requested
// format, such as a profile response that is not the demanded JSON.
func NewParseError(message string, err error) *Error {
	return &Error{Op: "parse", Message: message, Err: err}
}
