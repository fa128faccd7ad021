package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/waveguide/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
	Loops  []compiler.LoopWarning     `json:"loops,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <program.cue>",
		Short: "Check a program without lowering it",
		Long: `Compile a CUE program to trivial IR and check it.

Reports operand type errors, undefined or duplicate labels, asserts and
jumps with no preceding compare, and outputs that are never written. Loops
in the control flow are listed as well; a loop with no conditional exit is
a warning.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	slog.Debug("validating program", "path", path)
	loaded, err := LoadProgram(path, LoadModeValidate)
	if err != nil {
		return loadFailure(formatter, err)
	}

	loops := compiler.AnalyzeLoops(loaded.Trivial)
	slog.Debug("program loaded",
		"instructions", len(loaded.Trivial.Instructions()),
		"variables", len(loaded.Trivial.Variables()),
		"loops", len(loops))

	if formatter.JSON() {
		return formatter.Success(ValidationResult{Valid: true, Loops: loops})
	}

	fmt.Fprintln(formatter.Writer, "✓ Program valid")
	printLoops(formatter, loops)
	return nil
}

func printLoops(formatter *OutputFormatter, loops []compiler.LoopWarning) {
	for _, loop := range loops {
		fmt.Fprintf(formatter.Writer, "  %s: %s\n", loop.Level, loop.Message)
	}
}

// outputValidationErrors reports every validation error; the first one
// names the response code.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError, loops []compiler.LoopWarning) error {
	message := fmt.Sprintf("validation failed with %d error(s)", len(errs))
	if !formatter.JSON() {
		fmt.Fprintln(formatter.Writer, "✗ Validation failed")
		fmt.Fprintln(formatter.Writer)
		for _, err := range errs {
			fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n", err.Code, err.Field, err.Message)
		}
	}
	return formatter.Reject(ValidationResult{Valid: false, Errors: errs, Loops: loops}, errs[0].Code, message)
}
