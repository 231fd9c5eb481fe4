package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/statq/internal/engine"
)

// Exit codes for CLI commands.
const (
	ExitFailure      = 1 // The query was invalid
	ExitCommandError = 2 // Command error (unknown dataset, bad config, storage fault)
)

// Error codes in JSON error responses.
const (
	ErrCodeGeneric    = "E001" // Generic/unknown error
	ErrCodeConfig     = "E002" // Config could not be loaded
	ErrCodeCatalog    = "E003" // Catalog could not be opened or written
	ErrCodeReadBody   = "E004" // Query body could not be read
	ErrCodeValidation = "E101" // Query failed validation
	ErrCodeNotFound   = "E102" // Dataset or version not registered
	ErrCodeInternal   = "E103" // Storage fault
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status    string    `json:"status"`               // "ok" or "error"
	Data      any       `json:"data,omitempty"`       // success payload
	Error     *CLIError `json:"error,omitempty"`      // error details
	RequestID string    `json:"request_id,omitempty"` // correlates with log lines
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E001", "E101", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
// Non-JSON formats print data with fmt.
func (f *OutputFormatter) Success(requestID string, data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status:    "ok",
			Data:      data,
			RequestID: requestID,
		})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// engineError reports an engine error in the configured format and
// returns the ExitError for it. Validation errors carry the full error
// dictionary as details.
func (f *OutputFormatter) engineError(err error) error {
	var (
		ve *engine.ValidationError
		nf *engine.NotFoundError
		ie *engine.InternalError
	)
	switch {
	case errors.As(err, &ve):
		if outErr := f.Error(ErrCodeValidation, ve.Title, validationDetails(ve)); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitFailure, "invalid query", err)
	case errors.As(err, &nf):
		if outErr := f.Error(ErrCodeNotFound, nf.Error(), nil); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitCommandError, "not found", err)
	case errors.As(err, &ie):
		if outErr := f.Error(ErrCodeInternal, ie.Error(), map[string]string{"requestId": ie.RequestID}); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitCommandError, "query failed", err)
	default:
		if outErr := f.Error(ErrCodeGeneric, err.Error(), nil); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitCommandError, "query failed", err)
	}
}

// fail reports err under code in the configured format and returns it
// wrapped with exitCode.
func (f *OutputFormatter) fail(code string, exitCode int, message string, err error) error {
	if outErr := f.Error(code, err.Error(), nil); outErr != nil {
		return outErr
	}
	return WrapExitError(exitCode, message, err)
}

func validationDetails(ve *engine.ValidationError) map[string]any {
	details := map[string]any{"errors": ve.Errors}
	if len(ve.Warnings) > 0 {
		details["warnings"] = ve.Warnings
	}
	return details
}
