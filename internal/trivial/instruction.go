package trivial

import (
	"fmt"

	"github.com/roach88/waveguide/internal/ir"
)

// Condition is the flag test used by conditional jumps and asserts.
type Condition uint8

const (
	LessThan Condition = iota
	GreaterThan
	LessThanOrEqual
	GreaterThanOrEqual
	Equal
	NotEqual
)

// Negate returns the condition that holds exactly when c does not.
func (c Condition) Negate() Condition {
	switch c {
	case LessThan:
		return GreaterThanOrEqual
	case GreaterThan:
		return LessThanOrEqual
	case LessThanOrEqual:
		return GreaterThan
	case GreaterThanOrEqual:
		return LessThan
	case Equal:
		return NotEqual
	case NotEqual:
		return Equal
	default:
		panic(fmt.Sprintf("trivial: unknown condition %d", c))
	}
}

func (c Condition) String() string {
	switch c {
	case LessThan:
		return "lt"
	case GreaterThan:
		return "gt"
	case LessThanOrEqual:
		return "le"
	case GreaterThanOrEqual:
		return "ge"
	case Equal:
		return "eq"
	case NotEqual:
		return "ne"
	default:
		return fmt.Sprintf("cond(%d)", uint8(c))
	}
}

// ParseCondition accepts the names produced by Condition.String.
func ParseCondition(s string) (Condition, error) {
	for c := LessThan; c <= NotEqual; c++ {
		if c.String() == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown condition %q", s)
}

// BinaryOperator is an arithmetic or bitwise operation on two operands.
type BinaryOperator uint8

const (
	AddI BinaryOperator = iota
	SubI
	MulI
	DivI
	ModI

	AddF
	SubF
	MulF
	DivF
	ModF

	BAnd
	BOr
	BXor
)

var binaryOperatorNames = [...]string{
	AddI: "addi", SubI: "subi", MulI: "muli", DivI: "divi", ModI: "modi",
	AddF: "addf", SubF: "subf", MulF: "mulf", DivF: "divf", ModF: "modf",
	BAnd: "band", BOr: "bor", BXor: "bxor",
}

func (op BinaryOperator) String() string {
	if int(op) < len(binaryOperatorNames) {
		return binaryOperatorNames[op]
	}
	return fmt.Sprintf("binop(%d)", uint8(op))
}

// ParseBinaryOperator accepts the names produced by BinaryOperator.String.
func ParseBinaryOperator(s string) (BinaryOperator, error) {
	for i, name := range binaryOperatorNames {
		if name == s {
			return BinaryOperator(i), nil
		}
	}
	return 0, fmt.Errorf("unknown binary operator %q", s)
}

// LabelID names a jump target.
type LabelID int

func (l LabelID) String() string { return fmt.Sprintf("l%d", int(l)) }

// Instruction is the sealed set of trivial instructions.
type Instruction interface {
	ir.Instruction
	trivialInstruction()
}

// Move copies From into To.
type Move struct {
	From, To Value
}

// BinaryOperation computes X = A op B elementwise.
type BinaryOperation struct {
	Op      BinaryOperator
	A, B, X Value
}

// Not computes the bitwise or logical negation of A into X.
type Not struct {
	A, X Value
}

// Compare sets the flags tested by the next conditional instruction.
type Compare struct {
	A, B Value
}

// Label marks a jump target.
type Label struct {
	ID LabelID
}

// Jump transfers control unconditionally.
type Jump struct {
	Label LabelID
}

// ConditionalJump transfers control when Condition holds for the flags.
type ConditionalJump struct {
	Label     LabelID
	Condition Condition
}

// Assert aborts execution unless Condition holds for the flags.
type Assert struct {
	Condition Condition
}

func (Move) trivialInstruction()            {}
func (BinaryOperation) trivialInstruction() {}
func (Not) trivialInstruction()             {}
func (Compare) trivialInstruction()         {}
func (Label) trivialInstruction()           {}
func (Jump) trivialInstruction()            {}
func (ConditionalJump) trivialInstruction() {}
func (Assert) trivialInstruction()          {}

func (i Move) Reads() []ir.VariableID {
	_, indexReads := i.To.target()
	return append(i.From.sources(), indexReads...)
}

func (i Move) Writes() []ir.VariableID {
	written, _ := i.To.target()
	return written
}

func (i Move) String() string { return fmt.Sprintf("move %s -> %s", i.From, i.To) }

func (i BinaryOperation) Reads() []ir.VariableID {
	_, indexReads := i.X.target()
	reads := append(i.A.sources(), i.B.sources()...)
	return append(reads, indexReads...)
}

func (i BinaryOperation) Writes() []ir.VariableID {
	written, _ := i.X.target()
	return written
}

func (i BinaryOperation) String() string {
	return fmt.Sprintf("%s %s, %s -> %s", i.Op, i.A, i.B, i.X)
}

func (i Not) Reads() []ir.VariableID {
	_, indexReads := i.X.target()
	return append(i.A.sources(), indexReads...)
}

func (i Not) Writes() []ir.VariableID {
	written, _ := i.X.target()
	return written
}

func (i Not) String() string { return fmt.Sprintf("not %s -> %s", i.A, i.X) }

func (i Compare) Reads() []ir.VariableID {
	return append(i.A.sources(), i.B.sources()...)
}

func (Compare) Writes() []ir.VariableID { return nil }

func (i Compare) String() string { return fmt.Sprintf("comp %s, %s", i.A, i.B) }

func (Label) Reads() []ir.VariableID  { return nil }
func (Label) Writes() []ir.VariableID { return nil }
func (i Label) String() string        { return fmt.Sprintf("labl %s", i.ID) }

func (Jump) Reads() []ir.VariableID  { return nil }
func (Jump) Writes() []ir.VariableID { return nil }
func (i Jump) String() string        { return fmt.Sprintf("jump to %s", i.Label) }

func (ConditionalJump) Reads() []ir.VariableID  { return nil }
func (ConditionalJump) Writes() []ir.VariableID { return nil }

func (i ConditionalJump) String() string {
	return fmt.Sprintf("jump to %s if %s", i.Label, i.Condition)
}

func (Assert) Reads() []ir.VariableID  { return nil }
func (Assert) Writes() []ir.VariableID { return nil }
func (i Assert) String() string        { return fmt.Sprintf("asrt %s", i.Condition) }
