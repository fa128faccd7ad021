package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/waveguide/internal/llvmir"
)

// SpecializeOptions holds flags for the specialize and emit-llvm commands.
type SpecializeOptions struct {
	*RootOptions
	Output string // output file path
}

// SpecializeResult describes a lowered program.
type SpecializeResult struct {
	Hash         string `json:"hash"`
	Instructions int    `json:"instructions"`
	Variables    int    `json:"variables"`
	Text         string `json:"text,omitempty"`   // dump or LLVM module, omitted when written to a file
	Output       string `json:"output,omitempty"` // file the text was written to
}

// NewSpecializeCommand creates the specialize command.
func NewSpecializeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SpecializeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "specialize <program.cue>",
		Short: "Lower a program and print the specialized IR",
		Long: `Compile, validate and specialize a CUE program.

Array operations are expanded into one scalar instruction per element, with
proxied operands broadcast across discarded and collapsed dimensions. The
dump lists variables, inputs and outputs, then every instruction with the
variables it births and kills.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLowering(opts, args[0], cmd, dumpText)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

// NewEmitLLVMCommand creates the emit-llvm command.
func NewEmitLLVMCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SpecializeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "emit-llvm <program.cue>",
		Short: "Lower a program and print it as an LLVM IR module",
		Long: `Compile, validate and specialize a CUE program, then emit it as
textual LLVM IR. Variables live in a single @storage global laid out like
the native backend, and @main returns i64 with the same contract: 0 when
every assert held, otherwise the ordinal of the first failing assert.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLowering(opts, args[0], cmd, llvmText)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func dumpText(loaded *LoadResult) (string, error) {
	return loaded.Specialized.String(), nil
}

func llvmText(loaded *LoadResult) (string, error) {
	return llvmir.Emit(loaded.Specialized)
}

func runLowering(opts *SpecializeOptions, path string, cmd *cobra.Command, render func(*LoadResult) (string, error)) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	loaded, err := LoadProgram(path, LoadModeSpecialize)
	if err != nil {
		return loadFailure(formatter, err)
	}
	slog.Debug("lowered program", "path", path,
		"trivial_instructions", len(loaded.Trivial.Instructions()),
		"instructions", len(loaded.Specialized.Instructions()))

	text, err := render(loaded)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeLowerFailed, err.Error())
	}

	result := SpecializeResult{
		Hash:         loaded.Hash,
		Instructions: len(loaded.Specialized.Instructions()),
		Variables:    len(loaded.Specialized.Variables()),
	}
	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(text), 0644); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err))
		}
		result.Output = opts.Output
	} else {
		result.Text = text
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	if opts.Output != "" {
		fmt.Fprintf(formatter.Writer, "✓ Wrote %d instruction(s) to %s\n", result.Instructions, opts.Output)
		return nil
	}
	fmt.Fprint(formatter.Writer, text)
	return nil
}
