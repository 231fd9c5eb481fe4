package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/statq/internal/diag"
)

// ValidationError is a client fault. It carries every error the request
// produced, keyed by path, not just the first.
type ValidationError struct {
	// Title summarises the failure.
	Title string

	// Errors holds the accumulated issues by path.
	Errors diag.Dictionary

	// Warnings recorded before the request was rejected.
	Warnings diag.Dictionary
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	paths := e.Errors.Paths()
	switch len(paths) {
	case 0:
		return e.Title
	case 1:
		return fmt.Sprintf("%s (%s: %s)", e.Title, paths[0], e.Errors[paths[0]][0].Code)
	default:
		return fmt.Sprintf("%s (%d paths, first %s: %s)", e.Title, len(paths), paths[0], e.Errors[paths[0]][0].Code)
	}
}

// NotFoundError reports an unknown dataset or dataset version. It is raised
// before a query is compiled.
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// internalMessage is the only text an InternalError shows callers.
const internalMessage = "There was a problem processing the request."

// InternalError is a storage or execution fault. The cause is logged with
// the request id and kept for errors.Unwrap, but never rendered.
type InternalError struct {
	RequestID string
	Err       error
}

// Error implements the error interface.
func (e *InternalError) Error() string {
	return internalMessage
}

// Unwrap returns the cause.
func (e *InternalError) Unwrap() error {
	return e.Err
}

// IsValidationError returns true if err is or wraps a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFoundError returns true if err is or wraps a NotFoundError.
func IsNotFoundError(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsInternalError returns true if err is or wraps an InternalError.
func IsInternalError(err error) bool {
	var ie *InternalError
	return errors.As(err, &ie)
}

func newValidationError(ledger *diag.Ledger) *ValidationError {
	return &ValidationError{
		Title:    "The query is invalid.",
		Errors:   ledger.Errors(),
		Warnings: ledger.Warnings(),
	}
}
