package specialized

import (
	"errors"
	"fmt"
)

// LoweringError reports a trivial construct the specializer does not cover.
// It signals an incomplete lowering case, not a problem with the input
// program, and aborts specialization.
type LoweringError struct {
	// Code identifies the error category.
	Code LoweringErrorCode

	// Message is a human-readable description.
	Message string

	// Instruction is the index of the offending trivial instruction, or -1
	// when the failure is not tied to one.
	Instruction int
}

// LoweringErrorCode categorizes lowering errors.
type LoweringErrorCode string

const (
	// ErrCodeUnsupportedOperand indicates an operand shape with no lowering,
	// such as an indexed literal or a dynamically indexed variable.
	ErrCodeUnsupportedOperand LoweringErrorCode = "UNSUPPORTED_OPERAND"

	// ErrCodeUnsupportedInstruction indicates an instruction that must have
	// been eliminated by an earlier pass, such as a jump.
	ErrCodeUnsupportedInstruction LoweringErrorCode = "UNSUPPORTED_INSTRUCTION"

	// ErrCodeShapeMismatch indicates an operand whose dimensions cannot be
	// aligned with the shape of the operation.
	ErrCodeShapeMismatch LoweringErrorCode = "SHAPE_MISMATCH"
)

// Error implements the error interface.
func (e *LoweringError) Error() string {
	if e.Instruction >= 0 {
		return fmt.Sprintf("%s: %s (instruction %d)", e.Code, e.Message, e.Instruction)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsLoweringError reports whether err is or wraps a LoweringError.
func IsLoweringError(err error) bool {
	var le *LoweringError
	return errors.As(err, &le)
}

// LoweringErrorCodeOf returns the code of the LoweringError in err's chain,
// or "" if there is none.
func LoweringErrorCodeOf(err error) LoweringErrorCode {
	var le *LoweringError
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}
