package jit

import (
	"errors"
	"fmt"
)

// ErrUnsupportedPlatform is returned when executable memory cannot be
// provided on the current GOOS/GOARCH.
var ErrUnsupportedPlatform = errors.New("jit: native execution requires linux/amd64")

// AssemblyError reports a specialized instruction the assembler cannot
// encode, such as a packed operation or a dynamically indexed operand.
type AssemblyError struct {
	// Instruction is the index of the offending instruction.
	Instruction int

	// Text is the instruction as printed in dumps.
	Text string

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *AssemblyError) Error() string {
	return fmt.Sprintf("assembly failed at instruction %d (%s): %s", e.Instruction, e.Text, e.Message)
}

// IsAssemblyError reports whether err is or wraps an AssemblyError.
func IsAssemblyError(err error) bool {
	var ae *AssemblyError
	return errors.As(err, &ae)
}
