package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation signals bad or missing input.
	ErrValidation = errors.New("validation failed")
	// ErrFileTooLarge signals an upload above the configured size limit.
	ErrFileTooLarge = fmt.Errorf("file too large: %w", ErrValidation)
	// ErrNotFound signals a missing file or year.
	ErrNotFound = errors.New("not found")
	// ErrConflict signals a duplicate upload.
	ErrConflict = errors.New("already exists")
	// ErrExternalService signals an LLM provider or search server failure.
	ErrExternalService = errors.New("external service error")
	// ErrBudgetExceeded signals that the provider token budget is spent and requests are rejected.
	ErrBudgetExceeded = errors.New("token budget exceeded")
	// ErrIngestInProgress signals that another ingestion run holds the lock.
	ErrIngestInProgress = errors.New("data initialization already in progress")
)

// ValidationError carries a client-facing message. It unwraps to Kind, or to
// ErrValidation when Kind is nil.
type ValidationError struct {
	Message string
	Kind    error
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error {
	if e.Kind != nil {
		return e.Kind
	}
	return ErrValidation
}

// NewValidationError creates a validation error with a formatted message.
func NewValidationError(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// NewFileTooLargeError reports an upload above maxBytes.
func NewFileTooLargeError(maxBytes int64) error {
	return &ValidationError{
		Message: fmt.Sprintf("file too large, maximum size is %d MB", maxBytes>>20),
		Kind:    ErrFileTooLarge,
	}
}
