package ir

import (
	"fmt"
	"strings"

	"github.com/roach88/waveguide/internal/native"
)

// VariableID is a dense index into a program's variable table.
type VariableID int

func (id VariableID) String() string {
	return fmt.Sprintf("v%d", int(id))
}

// Variable is an entry of the variable table.
type Variable struct {
	Type native.Type
	// Name is the source-level name, if any. Only used in dumps and
	// diagnostics.
	Name string
}

// Value is a sealed interface over the operand kinds of lowered
// instructions. Only Literal and VariableAccess implement it.
type Value interface {
	fmt.Stringer
	irValue()
}

// Literal is an inline scalar constant.
type Literal struct {
	Data native.Data
}

func (Literal) irValue() {}

func (l Literal) String() string {
	return l.Data.String()
}

// Index is one dynamic term of an affine address: the value of Variable
// multiplied by Stride elements.
type Index struct {
	Variable VariableID
	Stride   int
}

// VariableAccess addresses Length contiguous elements of Variable starting at
// Offset + sum(index * stride), all measured in elements.
type VariableAccess struct {
	Variable VariableID
	Indexes  []Index
	Offset   int
	Length   int
}

func (VariableAccess) irValue() {}

func (a VariableAccess) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[", a.Variable)
	for _, idx := range a.Indexes {
		fmt.Fprintf(&b, "%d*%s + ", idx.Stride, idx.Variable)
	}
	if a.Offset > 0 || len(a.Indexes) > 0 {
		fmt.Fprintf(&b, "%d ", a.Offset)
	}
	fmt.Fprintf(&b, "len=%d]", a.Length)
	return b.String()
}

// Whole returns an access covering every stored element of a variable.
func Whole(id VariableID, v Variable) VariableAccess {
	return VariableAccess{Variable: id, Length: v.Type.ElementCount()}
}

// ReadVariables lists the variables whose values v consumes when used as a
// source operand: the accessed variable and every index variable.
func ReadVariables(v Value) []VariableID {
	access, ok := v.(VariableAccess)
	if !ok {
		return nil
	}
	ids := make([]VariableID, 0, 1+len(access.Indexes))
	ids = append(ids, access.Variable)
	for _, idx := range access.Indexes {
		ids = append(ids, idx.Variable)
	}
	return ids
}

// TargetVariables splits a destination operand into the variable it writes
// and the index variables it reads to compute the address.
func TargetVariables(v Value) (written []VariableID, read []VariableID) {
	access, ok := v.(VariableAccess)
	if !ok {
		return nil, nil
	}
	for _, idx := range access.Indexes {
		read = append(read, idx.Variable)
	}
	return []VariableID{access.Variable}, read
}
