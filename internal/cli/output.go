package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Program valid, asserts held, expectations met
	ExitFailure      = 1 // Invalid program, failed assert, mismatched output or failing scenario
	ExitCommandError = 2 // Missing file, unreadable cache, bad flags or values
)

// ExitError carries the process exit code out of a command.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string { return e.Message }

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
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

// CLIResponse is the JSON document every command writes with --format json.
// A failed run, an invalid program or a failing scenario set carries both
// Data and Error.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError identifies what went wrong by one of the E0xx/E1xx codes.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// OutputFormatter renders command results as text or as a CLIResponse.
// Diagnostics go through slog, which the root command points at stderr.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
}

// JSON reports whether results are written as a CLIResponse.
func (f *OutputFormatter) JSON() bool { return f.Format == "json" }

// Success writes data as an ok response, or prints it as is in text mode.
func (f *OutputFormatter) Success(data any) error {
	if f.JSON() {
		return f.write(CLIResponse{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error writes an error response with no result payload.
func (f *OutputFormatter) Error(code, message string) error {
	if f.JSON() {
		return f.write(CLIResponse{Status: "error", Error: &CLIError{Code: code, Message: message}})
	}
	_, err := fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	return err
}

// Fail reports an error that stopped the command and returns the ExitError
// for it.
func (f *OutputFormatter) Fail(exitCode int, code, message string) error {
	_ = f.Error(code, message)
	return NewExitError(exitCode, fmt.Sprintf("%s: %s", code, message))
}

// Reject ends a command whose result is a failure: the program ran or was
// checked, but an assert, an expectation or a scenario did not hold. In JSON
// mode data and the error share one response; in text mode the caller has
// already printed data.
func (f *OutputFormatter) Reject(data any, code, message string) error {
	if f.JSON() {
		err := f.write(CLIResponse{
			Status: "error",
			Data:   data,
			Error:  &CLIError{Code: code, Message: message},
		})
		if err != nil {
			return err
		}
	}
	return NewExitError(ExitFailure, message)
}

func (f *OutputFormatter) write(resp CLIResponse) error {
	encoder := json.NewEncoder(f.Writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(resp)
}
