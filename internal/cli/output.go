package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/staquery/internal/qerr"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Query rejected or scenarios failed
	ExitCommandError = 2 // Command error (invalid paths, database not found, etc.)
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

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
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

// Error codes for failures that carry no query error kind.
const (
	CodeCommand    = "E_COMMAND"
	CodeTestFailed = "E_TEST_FAILED"
)

// ErrorCode returns the qerr.Kind of err, or CodeCommand.
func ErrorCode(err error) string {
	if kind := qerr.KindOf(err); kind != "" {
		return string(kind)
	}
	return CodeCommand
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
	Status  string    `json:"status"`             // "ok" or "error"
	Data    any       `json:"data,omitempty"`     // success payload
	Error   *CLIError `json:"error,omitempty"`    // error details
	QueryID string    `json:"query_id,omitempty"` // id of the resolved query
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // query error kind or E_* code
	Message string `json:"message"`           // human-readable message
	Path    string `json:"path,omitempty"`    // offending property path
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format. Text
// output prints data with text, or as indented JSON when text is nil.
func (f *OutputFormatter) Success(queryID string, data any, text func(io.Writer)) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{Status: "ok", Data: data, QueryID: queryID})
	}
	if text != nil {
		text(f.Writer)
		return nil
	}
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(data)
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(err error, details any) error {
	cliErr := &CLIError{
		Code:    ErrorCode(err),
		Message: err.Error(),
		Details: details,
	}
	var qe *qerr.Error
	if errors.As(err, &qe) {
		cliErr.Message = qe.Message
		cliErr.Path = qe.Path
		if details == nil && len(qe.Details) > 0 {
			cliErr.Details = qe.Details
		}
	}

	if f.Format == "json" {
		return f.encode(CLIResponse{Status: "error", Error: cliErr})
	}

	// Human-readable error
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", cliErr.Code, cliErr.Message)
	if cliErr.Path != "" {
		fmt.Fprintf(f.Writer, "Path: %s\n", cliErr.Path)
	}
	if f.Verbose && cliErr.Details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", cliErr.Details)
	}
	return nil
}

func (f *OutputFormatter) encode(resp CLIResponse) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(resp)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
