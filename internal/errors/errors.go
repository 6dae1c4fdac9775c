package errors

import (
	"fmt"
)

// ScholaqError is the structured error type for scholaq.
// It provides rich context for error handling, logging, and user presentation.
type ScholaqError struct {
	// Code is the unique error code (e.g., "ERR_302_EMBED_FAILED").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Store, Provider, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *ScholaqError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *ScholaqError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with ScholaqError.
func (e *ScholaqError) Is(target error) bool {
	if t, ok := target.(*ScholaqError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *ScholaqError) WithDetail(key, value string) *ScholaqError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion sets an actionable suggestion for the user.
func (e *ScholaqError) WithSuggestion(s string) *ScholaqError {
	e.Suggestion = s
	return e
}

// WithRetryable marks the error as retryable.
func (e *ScholaqError) WithRetryable(retryable bool) *ScholaqError {
	e.Retryable = retryable
	return e
}

// New creates a new ScholaqError with the given code and message.
// The category is derived from the code.
func New(code, message string) *ScholaqError {
	return &ScholaqError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: SeverityError,
	}
}

// Newf creates a new ScholaqError with a formatted message.
func Newf(code, format string, args ...any) *ScholaqError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with a code and message.
// Returns nil if the cause is nil.
func Wrap(cause error, code, message string) *ScholaqError {
	if cause == nil {
		return nil
	}
	e := New(code, message)
	e.Cause = cause
	return e
}

// Wrapf wraps an existing error with a code and formatted message.
func Wrapf(cause error, code, format string, args ...any) *ScholaqError {
	return Wrap(cause, code, fmt.Sprintf(format, args...))
}

// CodeOf returns the code of err if it is a ScholaqError, or "" otherwise.
func CodeOf(err error) string {
	if e, ok := err.(*ScholaqError); ok {
		return e.Code
	}
	return ""
}
