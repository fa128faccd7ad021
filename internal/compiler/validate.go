package compiler

import (
	"fmt"
	"slices"

	"github.com/roach88/waveguide/internal/ir"
	"github.com/roach88/waveguide/internal/native"
	"github.com/roach88/waveguide/internal/trivial"
)

// Validation error codes (E100-E199)
const (
	ErrOperatorType       = "E101" // operand base type does not fit the operator
	ErrLiteralDestination = "E102" // literal used as a destination
	ErrUndefinedLabel     = "E103" // jump to a label that is never placed
	ErrDuplicateLabel     = "E104" // label placed more than once
	ErrMissingCompare     = "E105" // condition tested with no preceding comp
	ErrOutputUnwritten    = "E106" // output is neither an input nor written
	ErrIndexRank          = "E107" // more indexes than the variable has dimensions
	ErrCompareTypes       = "E108" // comparison between float and non-float
	ErrCompareShape       = "E109" // comparison operand is not a scalar
	ErrMoveTypes          = "E110" // move between variables of different base types
)

// ValidationError represents a semantic problem in a compiled program.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled program. Returns all errors found (does not
// fail-fast).
func Validate(p *trivial.Program) []ValidationError {
	v := &validator{prog: p, written: make(map[ir.VariableID]bool)}
	v.labels()
	v.flags()

	for i, instr := range p.Instructions() {
		field := fmt.Sprintf("instructions[%d]", i)
		switch instr := instr.(type) {
		case trivial.Move:
			v.operand(field+".from", instr.From)
			v.destination(field+".to", instr.To)
			v.move(field, instr)
		case trivial.Not:
			v.operand(field+".a", instr.A)
			v.destination(field+".x", instr.X)
			if t, ok := v.typeOf(instr.A); ok && t.Base() == native.F32 {
				v.add(field, ErrOperatorType, "not on f32")
			}
		case trivial.BinaryOperation:
			v.operand(field+".a", instr.A)
			v.operand(field+".b", instr.B)
			v.destination(field+".x", instr.X)
			v.binary(field, instr)
		case trivial.Compare:
			v.operand(field+".a", instr.A)
			v.operand(field+".b", instr.B)
			ta, okA := v.typeOf(instr.A)
			tb, okB := v.typeOf(instr.B)
			if okA && okB && (ta.Base() == native.F32) != (tb.Base() == native.F32) {
				v.add(field, ErrCompareTypes, fmt.Sprintf("comparing %s with %s", ta, tb))
			}
			if okA && !ta.IsScalar() {
				v.add(field+".a", ErrCompareShape, fmt.Sprintf("comparing %s, want a scalar", ta))
			}
			if okB && !tb.IsScalar() {
				v.add(field+".b", ErrCompareShape, fmt.Sprintf("comparing %s, want a scalar", tb))
			}
		}
	}

	for i, id := range p.Outputs() {
		if !v.written[id] && !slices.Contains(p.Inputs(), id) {
			v.add(fmt.Sprintf("outputs[%d]", i), ErrOutputUnwritten,
				fmt.Sprintf("output %s is never written", name(p, id)))
		}
	}
	return v.errs
}

type validator struct {
	prog    *trivial.Program
	errs    []ValidationError
	written map[ir.VariableID]bool
}

func (v *validator) add(field, code, msg string) {
	v.errs = append(v.errs, ValidationError{Field: field, Message: msg, Code: code})
}

// labels reports jumps to unplaced labels and labels placed twice.
func (v *validator) labels() {
	placed := make(map[trivial.LabelID]int)
	for i, instr := range v.prog.Instructions() {
		if l, ok := instr.(trivial.Label); ok {
			if first, dup := placed[l.ID]; dup {
				v.add(fmt.Sprintf("instructions[%d]", i), ErrDuplicateLabel,
					fmt.Sprintf("label %s already placed at instructions[%d]", l.ID, first))
				continue
			}
			placed[l.ID] = i
		}
	}
	for i, instr := range v.prog.Instructions() {
		var target trivial.LabelID
		switch instr := instr.(type) {
		case trivial.Jump:
			target = instr.Label
		case trivial.ConditionalJump:
			target = instr.Label
		default:
			continue
		}
		if _, ok := placed[target]; !ok {
			v.add(fmt.Sprintf("instructions[%d]", i), ErrUndefinedLabel,
				fmt.Sprintf("label %s is never placed", target))
		}
	}
}

// flags reports condition tests that are not preceded by a comp in the same
// straight-line run. A label starts a new run since it may be entered from
// elsewhere.
func (v *validator) flags() {
	valid := false
	for i, instr := range v.prog.Instructions() {
		switch instr.(type) {
		case trivial.Compare:
			valid = true
		case trivial.Label:
			valid = false
		case trivial.Assert, trivial.ConditionalJump:
			if !valid {
				v.add(fmt.Sprintf("instructions[%d]", i), ErrMissingCompare,
					fmt.Sprintf("%s has no preceding comp", instr))
			}
		}
	}
}

func (v *validator) operand(field string, val trivial.Value) {
	for i, idx := range val.Indexes {
		v.operand(fmt.Sprintf("%s.index[%d]", field, i), idx)
	}
	if len(val.Indexes) > 0 {
		if t := v.baseType(val); len(val.Indexes) > t.Rank() {
			v.add(field, ErrIndexRank,
				fmt.Sprintf("%d indexes into %s", len(val.Indexes), t))
		}
	}
}

func (v *validator) destination(field string, val trivial.Value) {
	if _, ok := val.Base.(trivial.Literal); ok {
		v.add(field, ErrLiteralDestination, fmt.Sprintf("cannot write to literal %s", val))
		return
	}
	v.operand(field, val)
	if id, ok := val.VariableID(); ok {
		v.written[id] = true
	}
}

// move reports copies between variables of different base types. Literals
// are converted to the destination kind and are not checked here.
func (v *validator) move(field string, instr trivial.Move) {
	if _, ok := instr.From.Base.(trivial.Variable); !ok {
		return
	}
	if _, ok := instr.To.Base.(trivial.Variable); !ok {
		return
	}
	from, okFrom := v.typeOf(instr.From)
	to, okTo := v.typeOf(instr.To)
	if okFrom && okTo && from.Base() != to.Base() {
		v.add(field, ErrMoveTypes, fmt.Sprintf("moving %s into %s", from, to))
	}
}

func (v *validator) binary(field string, instr trivial.BinaryOperation) {
	var want func(native.BaseType) bool
	var wantText string
	switch {
	case instr.Op <= trivial.ModI:
		want, wantText = func(b native.BaseType) bool { return b == native.I32 }, "i32"
	case instr.Op <= trivial.ModF:
		want, wantText = func(b native.BaseType) bool { return b == native.F32 }, "f32"
	default:
		want, wantText = func(b native.BaseType) bool { return b != native.F32 }, "i32 or b8"
	}
	for _, operand := range []struct {
		name string
		val  trivial.Value
	}{{"a", instr.A}, {"b", instr.B}, {"x", instr.X}} {
		t, ok := v.typeOf(operand.val)
		if ok && !want(t.Base()) {
			v.add(field+"."+operand.name, ErrOperatorType,
				fmt.Sprintf("%s expects %s, got %s", instr.Op, wantText, t))
		}
	}
}

// typeOf returns the operand type, or false when the operand is malformed
// in a way reported elsewhere.
func (v *validator) typeOf(val trivial.Value) (native.Type, bool) {
	if len(val.Indexes) > v.baseType(val).Rank() && len(val.Proxy) == 0 {
		return native.Type{}, false
	}
	return val.Type(v.prog), true
}

func (v *validator) baseType(val trivial.Value) native.Type {
	switch b := val.Base.(type) {
	case trivial.Literal:
		return b.Data.Type()
	case trivial.Variable:
		return v.prog.Variable(b.ID).Type
	}
	return native.Type{}
}

func name(p *trivial.Program, id ir.VariableID) string {
	if n := p.Variable(id).Name; n != "" {
		return fmt.Sprintf("%q", n)
	}
	return id.String()
}
