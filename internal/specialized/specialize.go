package specialized

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/waveguide/internal/ir"
	"github.com/roach88/waveguide/internal/native"
	"github.com/roach88/waveguide/internal/nvec"
	"github.com/roach88/waveguide/internal/trivial"
)

var operatorTable = [...]OperatorKind{
	trivial.AddI: AddI,
	trivial.SubI: SubI,
	trivial.MulI: MulI,
	trivial.DivI: DivI,
	trivial.ModI: ModI,
	trivial.AddF: AddF,
	trivial.SubF: SubF,
	trivial.MulF: MulF,
	trivial.DivF: DivF,
	trivial.ModF: ModF,
	trivial.BAnd: BAnd,
	trivial.BOr:  BOr,
	trivial.BXor: BXor,
}

var conditionTable = [...]Condition{
	trivial.LessThan:           LessThan,
	trivial.GreaterThan:        GreaterThan,
	trivial.LessThanOrEqual:    LessThanOrEqual,
	trivial.GreaterThanOrEqual: GreaterThanOrEqual,
	trivial.Equal:              Equal,
	trivial.NotEqual:           NotEqual,
}

// specializer holds the state of one Specialize call. The variable map lives
// only as long as the call.
type specializer struct {
	src     *trivial.Program
	dst     *Program
	vars    map[ir.VariableID]ir.VariableID
	current int
}

// Specialize lowers a trivial program. Inputs and outputs keep their declared
// order, every referenced trivial variable maps to exactly one specialized
// variable carrying its storage type, and the result is finalized.
//
// Returns a *LoweringError for constructs the pass does not cover; no
// partial program is returned in that case.
func Specialize(src *trivial.Program) (*Program, error) {
	s := &specializer{
		src:     src,
		dst:     ir.NewProgram[Instruction](),
		vars:    make(map[ir.VariableID]ir.VariableID),
		current: -1,
	}
	for _, id := range src.Inputs() {
		s.dst.AddInput(s.variable(id))
	}
	for _, id := range src.Outputs() {
		s.dst.AddOutput(s.variable(id))
	}
	for i, instr := range src.Instructions() {
		s.current = i
		if err := s.instruction(instr); err != nil {
			return nil, err
		}
	}
	s.dst.Finalize()
	slog.Debug("specialized program",
		"trivial_instructions", len(src.Instructions()),
		"instructions", len(s.dst.Instructions()),
		"variables", len(s.dst.Variables()))
	return s.dst, nil
}

// variable returns the specialized counterpart of a trivial variable,
// creating it on first use.
func (s *specializer) variable(id ir.VariableID) ir.VariableID {
	if target, ok := s.vars[id]; ok {
		return target
	}
	v := s.src.Variable(id)
	target := s.dst.AdoptVariable(ir.Variable{Type: v.Type.Resolved(), Name: v.Name})
	s.vars[id] = target
	return target
}

func (s *specializer) instruction(instr trivial.Instruction) error {
	switch instr := instr.(type) {
	case trivial.Move:
		return s.move(instr)
	case trivial.BinaryOperation:
		return s.binaryOperation(instr)
	case trivial.Compare:
		a, err := s.scalar(instr.A)
		if err != nil {
			return err
		}
		b, err := s.scalar(instr.B)
		if err != nil {
			return err
		}
		s.emit(Compare{A: a, B: b})
		return nil
	case trivial.Assert:
		s.emit(Assert{Condition: conditionTable[instr.Condition]})
		return nil
	default:
		return s.fail(ErrCodeUnsupportedInstruction, "no lowering for %q", instr)
	}
}

// operand lowers a value structurally: literals stay literals and plain
// variables become an access covering the whole variable.
func (s *specializer) operand(v trivial.Value) (ir.Value, error) {
	switch base := v.Base.(type) {
	case trivial.Literal:
		if len(v.Indexes) > 0 {
			return nil, s.fail(ErrCodeUnsupportedOperand, "indexed literal %s", v)
		}
		if _, ok := base.Data.(native.Array); ok {
			return nil, s.fail(ErrCodeUnsupportedOperand, "array literal %s", v)
		}
		return ir.Literal{Data: base.Data}, nil
	case trivial.Variable:
		if len(v.Indexes) > 0 {
			return nil, s.fail(ErrCodeUnsupportedOperand, "indexed variable %s", v)
		}
		id := s.variable(base.ID)
		return ir.Whole(id, s.dst.Variable(id)), nil
	default:
		return nil, s.fail(ErrCodeUnsupportedOperand, "unknown operand %s", v)
	}
}

// scalar lowers a compare operand, which must have rank 0.
func (s *specializer) scalar(v trivial.Value) (ir.Value, error) {
	lowered, err := s.operand(v)
	if err != nil {
		return nil, err
	}
	if t := v.Type(s.src); !t.IsScalar() {
		return nil, s.fail(ErrCodeShapeMismatch, "compare operand %s has type %s, want a scalar", v, t)
	}
	return lowered, nil
}

// move lowers a Move. Copies between unproxied values of the same shape stay
// a single whole-variable move; every other move is expanded element by
// element over the destination shape, like a binary operation.
func (s *specializer) move(instr trivial.Move) error {
	if _, ok := instr.To.Base.(trivial.Literal); ok {
		return s.fail(ErrCodeUnsupportedOperand, "cannot move into literal %s", instr.To)
	}
	if s.wholeMove(instr) {
		from, err := s.operand(instr.From)
		if err != nil {
			return err
		}
		to, err := s.operand(instr.To)
		if err != nil {
			return err
		}
		s.emit(Move{From: from, To: to})
		return nil
	}
	if !instr.To.IsPlain() {
		return s.fail(ErrCodeUnsupportedOperand, "move destination %s is not a plain variable", instr.To)
	}
	shape := s.resultShape(instr.To)
	if len(shape) == 0 {
		return s.moveElement(instr, nil)
	}
	count := 0
	for coord := range nvec.Enumerate(shape) {
		if err := s.moveElement(instr, coord); err != nil {
			return err
		}
		count++
	}
	slog.Debug("move expansion", "from", instr.From.String(), "shape", shape, "count", count)
	return nil
}

func (s *specializer) moveElement(instr trivial.Move, coord []int) error {
	from, err := s.element(instr.From, coord)
	if err != nil {
		return err
	}
	to, err := s.element(instr.To, coord)
	if err != nil {
		return err
	}
	s.emit(Move{From: from, To: to})
	return nil
}

// wholeMove reports whether m copies storage one to one: neither side is
// proxied, both types are resolved and the shapes match.
func (s *specializer) wholeMove(m trivial.Move) bool {
	if len(m.From.Proxy) > 0 || len(m.To.Proxy) > 0 {
		return false
	}
	id, ok := m.To.VariableID()
	if !ok {
		return false
	}
	to := s.src.Variable(id).Type
	var from native.Type
	switch base := m.From.Base.(type) {
	case trivial.Literal:
		from = base.Data.Type()
	case trivial.Variable:
		from = s.src.Variable(base.ID).Type
	default:
		return false
	}
	return from.IsResolved() && to.IsResolved() && slices.Equal(from.Shape(), to.Shape())
}

func (s *specializer) binaryOperation(instr trivial.BinaryOperation) error {
	op := Op(operatorTable[instr.Op])
	if !instr.X.IsPlain() {
		return s.fail(ErrCodeUnsupportedOperand, "result %s is not a plain variable", instr.X)
	}
	shape := s.resultShape(instr.X)
	if len(shape) == 0 {
		a, err := s.element(instr.A, nil)
		if err != nil {
			return err
		}
		b, err := s.element(instr.B, nil)
		if err != nil {
			return err
		}
		x, err := s.element(instr.X, nil)
		if err != nil {
			return err
		}
		s.emit(BinaryOperation{Op: op, A: a, B: b, X: x})
		return nil
	}

	count := 0
	for coord := range nvec.Enumerate(shape) {
		a, err := s.element(instr.A, coord)
		if err != nil {
			return err
		}
		b, err := s.element(instr.B, coord)
		if err != nil {
			return err
		}
		x, err := s.element(instr.X, coord)
		if err != nil {
			return err
		}
		s.emit(BinaryOperation{Op: op, A: a, B: b, X: x})
		count++
	}
	slog.Debug("broadcast expansion", "op", op.String(), "shape", shape, "count", count)
	return nil
}

// resultShape is the shape the operation runs over: the proxy view of the
// result when it has one, otherwise the logical shape of the result variable.
func (s *specializer) resultShape(x trivial.Value) []int {
	if len(x.Proxy) > 0 {
		shape := make([]int, len(x.Proxy))
		for i, d := range x.Proxy {
			shape[i] = d.Size
		}
		return shape
	}
	id, _ := x.VariableID()
	return s.src.Variable(id).Type.Shape()
}

// element re-addresses v to the single element selected by coord, a
// coordinate over the operation's shape.
//
// The coordinate is first mapped through the operand's proxy, then through
// the proxy dimensions of the variable's own type, giving a coordinate over
// the variable's storage. Scalars and literals ignore coord.
func (s *specializer) element(v trivial.Value, coord []int) (ir.Value, error) {
	lowered, err := s.operand(v)
	if err != nil {
		return nil, err
	}
	access, ok := lowered.(ir.VariableAccess)
	if !ok {
		return lowered, nil
	}
	id, _ := v.VariableID()
	t := s.src.Variable(id).Type
	if t.IsScalar() {
		access.Length = 1
		return access, nil
	}

	vcoord := coord
	if len(v.Proxy) > 0 {
		if len(v.Proxy) != len(coord) {
			return nil, s.fail(ErrCodeShapeMismatch, "%s has %d proxied dimensions, operation has %d", v, len(v.Proxy), len(coord))
		}
		vcoord = native.ApplyProxy(v.Proxy, coord)
	}
	shape := t.Shape()
	if len(vcoord) != len(shape) {
		return nil, s.fail(ErrCodeShapeMismatch, "%s of type %s cannot be addressed by %d coordinates", v, t, len(vcoord))
	}
	for i, c := range vcoord {
		if c >= shape[i] {
			return nil, s.fail(ErrCodeShapeMismatch, "coordinate %v is outside %s of type %s", vcoord, v, t)
		}
	}

	storage := native.ApplyProxy(t.Dims(), vcoord)
	multipliers := nvec.Multipliers(t.StorageShape())
	offset := 0
	for i, c := range storage {
		offset += c * multipliers[i]
	}
	access.Offset = offset
	access.Length = 1
	s.dst.CheckAccess(access)
	return access, nil
}

func (s *specializer) emit(instr Instruction) {
	s.dst.AddInstruction(instr)
}

func (s *specializer) fail(code LoweringErrorCode, format string, args ...any) error {
	return &LoweringError{
		Code:        code,
		Message:     fmt.Sprintf(format, args...),
		Instruction: s.current,
	}
}
