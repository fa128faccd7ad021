package cli

import (
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue/token"

	"github.com/roach88/waveguide/internal/compiler"
	"github.com/roach88/waveguide/internal/ir"
	"github.com/roach88/waveguide/internal/specialized"
	"github.com/roach88/waveguide/internal/trivial"
)

// Error code constants, unified across all CLI commands. Program validation
// uses the compiler's E1xx codes.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No scenario files found
	ErrCodeLoadFailed  = "E004" // CUE load or compile failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeLowerFailed = "E006" // Specialization failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeCacheFailed = "E008" // Artifact cache error
	ErrCodeBadValues   = "E009" // Malformed inputs or expectations
	ErrCodeBackend     = "E010" // Backend could not be built
	ErrCodeMismatch    = "E011" // Result or outputs differ from expectations
	ErrCodeAssertFail  = "E012" // An assert failed with no expectations given

	// ErrCodeTestFailed marks a test run with failing scenarios.
	ErrCodeTestFailed = "E_TEST_FAILED"
)

// LoadMode controls how far a program is taken by LoadProgram.
type LoadMode int

const (
	// LoadModeValidate compiles and validates the trivial program.
	LoadModeValidate LoadMode = iota
	// LoadModeSpecialize also lowers it and computes its hash.
	LoadModeSpecialize
)

// LoadResult holds a program at every stage the commands need.
type LoadResult struct {
	Path        string
	Trivial     *trivial.Program
	Specialized *specialized.Program // nil in LoadModeValidate
	Hash        string               // ir.Hash of Specialized
}

// LoadError represents an error that occurred while loading a program.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos                  // CUE position if available
	Errors  []compiler.ValidationError // set when validation failed
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ExitCode is ExitFailure for a program that compiled but did not validate
// or lower, and ExitCommandError for everything else.
func (e *LoadError) ExitCode() int {
	if len(e.Errors) > 0 || e.Code == ErrCodeLowerFailed {
		return ExitFailure
	}
	return ExitCommandError
}

// LoadProgram compiles the CUE program at path, validates it and, in
// LoadModeSpecialize, lowers it. Every failure is a *LoadError.
func LoadProgram(path string, mode LoadMode) (*LoadResult, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("program not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing program: %v", err)}
	}
	if info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a file: %s", path)}
	}

	tp, err := compiler.LoadFile(path)
	if err != nil {
		return nil, convertCompileError(err)
	}
	if errs := compiler.Validate(tp); len(errs) > 0 {
		return nil, &LoadError{
			Code:    errs[0].Code,
			Message: fmt.Sprintf("validation failed with %d error(s)", len(errs)),
			Errors:  errs,
		}
	}

	result := &LoadResult{Path: path, Trivial: tp}
	if mode == LoadModeValidate {
		return result, nil
	}

	sp, err := specialized.Specialize(tp)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLowerFailed, Message: err.Error()}
	}
	result.Specialized = sp
	result.Hash = ir.Hash(sp)
	return result, nil
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		msg := compileErr.Message
		if compileErr.Field != "" {
			msg = compileErr.Field + ": " + msg
		}
		return &LoadError{
			Code:    ErrCodeLoadFailed,
			Message: msg,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
}

// loadFailure reports a LoadProgram error through the formatter.
func loadFailure(f *OutputFormatter, err error) error {
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error())
	}
	if len(loadErr.Errors) > 0 {
		return outputValidationErrors(f, loadErr.Errors, nil)
	}
	message := loadErr.Message
	if p := loadErr.Pos; p.IsValid() {
		message = fmt.Sprintf("%s:%d:%d: %s", p.Filename(), p.Line(), p.Column(), message)
	}
	return f.Fail(loadErr.ExitCode(), loadErr.Code, message)
}
