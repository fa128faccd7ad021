package specialized

import (
	"fmt"

	"github.com/roach88/waveguide/internal/ir"
)

// Program is a specialized program.
type Program = ir.Program[Instruction]

// Condition is the flag test performed by Assert.
type Condition uint8

const (
	LessThan Condition = iota
	GreaterThan
	LessThanOrEqual
	GreaterThanOrEqual
	Equal
	NotEqual
)

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

// ParallelWidth is the register width of a packed operation in bits.
// Scalar operations use Scalar.
type ParallelWidth uint16

const (
	Scalar ParallelWidth = 0
	W128   ParallelWidth = 128
	W256   ParallelWidth = 256
	W512   ParallelWidth = 512
)

// OperatorKind is the arithmetic or bitwise function of a BinaryOperator.
type OperatorKind uint8

const (
	AddI OperatorKind = iota
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

var operatorStems = [...]struct{ stem, suffix string }{
	AddI: {"add", "i"}, SubI: {"sub", "i"}, MulI: {"mul", "i"}, DivI: {"div", "i"}, ModI: {"mod", "i"},
	AddF: {"add", "f"}, SubF: {"sub", "f"}, MulF: {"mul", "f"}, DivF: {"div", "f"}, ModF: {"mod", "f"},
	BAnd: {"band", ""}, BOr: {"bor", ""}, BXor: {"bxor", ""},
}

func (k OperatorKind) String() string {
	if int(k) >= len(operatorStems) {
		return fmt.Sprintf("op(%d)", uint8(k))
	}
	s := operatorStems[k]
	return s.stem + s.suffix
}

// IsInt reports whether k operates on 32-bit integers.
func (k OperatorKind) IsInt() bool { return k <= ModI }

// IsFloat reports whether k operates on 32-bit floats.
func (k OperatorKind) IsFloat() bool { return k >= AddF && k <= ModF }

// IsBitwise reports whether k is a bitwise operation.
func (k OperatorKind) IsBitwise() bool { return k >= BAnd && k <= BXor }

// BinaryOperator is an operator kind plus the width it runs at. Only
// arithmetic kinds have packed forms.
type BinaryOperator struct {
	Kind  OperatorKind
	Width ParallelWidth
}

// Op returns the scalar form of k.
func Op(k OperatorKind) BinaryOperator {
	return BinaryOperator{Kind: k}
}

// Packed returns the packed form of k at width w. Panics for bitwise kinds
// and for widths outside the taxonomy.
func Packed(k OperatorKind, w ParallelWidth) BinaryOperator {
	if k.IsBitwise() {
		panic(fmt.Sprintf("specialized: %s has no packed form", k))
	}
	switch w {
	case W128, W256, W512:
	default:
		panic(fmt.Sprintf("specialized: invalid parallel width %d", w))
	}
	return BinaryOperator{Kind: k, Width: w}
}

// IsPacked reports whether op works on a whole vector register.
func (op BinaryOperator) IsPacked() bool { return op.Width != Scalar }

// String renders the operator as in dumps: addi, addpackedf256, bxor.
func (op BinaryOperator) String() string {
	if !op.IsPacked() {
		return op.Kind.String()
	}
	s := operatorStems[op.Kind]
	return fmt.Sprintf("%spacked%s%d", s.stem, s.suffix, op.Width)
}

// Instruction is the sealed set of specialized instructions.
type Instruction interface {
	ir.Instruction
	specializedInstruction()
}

// Move copies From into To. Both operands may cover several elements.
type Move struct {
	From, To ir.Value
}

// BinaryOperation computes X = A op B.
type BinaryOperation struct {
	Op      BinaryOperator
	A, B, X ir.Value
}

// Compare sets the flags for the next Assert.
type Compare struct {
	A, B ir.Value
}

// Assert stops execution unless Condition holds for the flags.
type Assert struct {
	Condition Condition
}

func (Move) specializedInstruction()            {}
func (BinaryOperation) specializedInstruction() {}
func (Compare) specializedInstruction()         {}
func (Assert) specializedInstruction()          {}

func (i Move) Reads() []ir.VariableID {
	_, indexes := ir.TargetVariables(i.To)
	return append(ir.ReadVariables(i.From), indexes...)
}

func (i Move) Writes() []ir.VariableID {
	written, _ := ir.TargetVariables(i.To)
	return written
}

func (i Move) String() string { return fmt.Sprintf("move %s -> %s", i.From, i.To) }

func (i BinaryOperation) Reads() []ir.VariableID {
	_, indexes := ir.TargetVariables(i.X)
	reads := append(ir.ReadVariables(i.A), ir.ReadVariables(i.B)...)
	return append(reads, indexes...)
}

func (i BinaryOperation) Writes() []ir.VariableID {
	written, _ := ir.TargetVariables(i.X)
	return written
}

func (i BinaryOperation) String() string {
	return fmt.Sprintf("%s %s, %s -> %s", i.Op, i.A, i.B, i.X)
}

func (i Compare) Reads() []ir.VariableID {
	return append(ir.ReadVariables(i.A), ir.ReadVariables(i.B)...)
}

func (Compare) Writes() []ir.VariableID { return nil }

func (i Compare) String() string { return fmt.Sprintf("comp %s, %s", i.A, i.B) }

func (Assert) Reads() []ir.VariableID  { return nil }
func (Assert) Writes() []ir.VariableID { return nil }
func (i Assert) String() string        { return fmt.Sprintf("asrt %s", i.Condition) }
