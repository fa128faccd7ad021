package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/waveguide/internal/ir"
	"github.com/roach88/waveguide/internal/native"
	"github.com/roach88/waveguide/internal/trivial"
)

// LoadFile reads and compiles a CUE program description. Positions in
// returned errors refer to path.
func LoadFile(path string) (*trivial.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read program: %w", err)
	}
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	return CompileProgram(v)
}

// CompileProgram builds a finalized trivial program from a CUE value.
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`variables: a: "i32" ...`)
//	p, err := CompileProgram(v)
func CompileProgram(v cue.Value) (*trivial.Program, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	c := &programCompiler{
		prog:   trivial.NewProgram(),
		names:  make(map[string]ir.VariableID),
		labels: make(map[string]trivial.LabelID),
	}
	if err := c.variables(v); err != nil {
		return nil, err
	}
	if err := c.declare(v, "inputs", c.prog.AddInput); err != nil {
		return nil, err
	}
	if err := c.declare(v, "outputs", c.prog.AddOutput); err != nil {
		return nil, err
	}
	if err := c.instructions(v); err != nil {
		return nil, err
	}
	c.prog.Finalize()
	return c.prog, nil
}

type programCompiler struct {
	prog   *trivial.Program
	names  map[string]ir.VariableID
	labels map[string]trivial.LabelID
}

func (c *programCompiler) variables(v cue.Value) error {
	varsVal := v.LookupPath(cue.ParsePath("variables"))
	if !varsVal.Exists() {
		return &CompileError{
			Field:   "variables",
			Message: "variables is required",
			Pos:     v.Pos(),
		}
	}
	iter, err := varsVal.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		name := iter.Label()
		field := "variables." + name
		s, err := iter.Value().String()
		if err != nil {
			return &CompileError{Field: field, Message: "type must be a string", Pos: iter.Value().Pos()}
		}
		t, err := native.ParseType(s)
		if err != nil {
			return &CompileError{Field: field, Message: err.Error(), Pos: iter.Value().Pos()}
		}
		c.names[name] = c.prog.NewVariable(t, name)
	}
	return nil
}

func (c *programCompiler) declare(v cue.Value, field string, add func(ir.VariableID)) error {
	listVal := v.LookupPath(cue.ParsePath(field))
	if !listVal.Exists() {
		return nil
	}
	iter, err := listVal.List()
	if err != nil {
		return formatCUEError(err)
	}
	seen := make(map[string]bool)
	for i := 0; iter.Next(); i++ {
		path := fmt.Sprintf("%s[%d]", field, i)
		name, err := iter.Value().String()
		if err != nil {
			return &CompileError{Field: path, Message: "must be a variable name", Pos: iter.Value().Pos()}
		}
		id, ok := c.names[name]
		if !ok {
			return &CompileError{Field: path, Message: fmt.Sprintf("unknown variable %q", name), Pos: iter.Value().Pos()}
		}
		if seen[name] {
			return &CompileError{Field: path, Message: fmt.Sprintf("%q listed twice", name), Pos: iter.Value().Pos()}
		}
		seen[name] = true
		add(id)
	}
	return nil
}

func (c *programCompiler) instructions(v cue.Value) error {
	listVal := v.LookupPath(cue.ParsePath("instructions"))
	if !listVal.Exists() {
		return &CompileError{
			Field:   "instructions",
			Message: "instructions is required",
			Pos:     v.Pos(),
		}
	}
	iter, err := listVal.List()
	if err != nil {
		return formatCUEError(err)
	}
	for i := 0; iter.Next(); i++ {
		instr, err := c.instruction(iter.Value(), fmt.Sprintf("instructions[%d]", i))
		if err != nil {
			return err
		}
		c.prog.AddInstruction(instr)
	}
	return nil
}

func (c *programCompiler) instruction(v cue.Value, field string) (trivial.Instruction, error) {
	opVal := v.LookupPath(cue.ParsePath("op"))
	if !opVal.Exists() {
		return nil, &CompileError{Field: field + ".op", Message: "op is required", Pos: v.Pos()}
	}
	op, err := opVal.String()
	if err != nil {
		return nil, &CompileError{Field: field + ".op", Message: "op must be a string", Pos: opVal.Pos()}
	}

	switch op {
	case "move":
		from, err := c.operand(v, field, "from")
		if err != nil {
			return nil, err
		}
		to, err := c.operand(v, field, "to")
		if err != nil {
			return nil, err
		}
		return trivial.Move{From: from, To: to}, nil
	case "not":
		a, err := c.operand(v, field, "a")
		if err != nil {
			return nil, err
		}
		x, err := c.operand(v, field, "x")
		if err != nil {
			return nil, err
		}
		return trivial.Not{A: a, X: x}, nil
	case "comp":
		a, err := c.operand(v, field, "a")
		if err != nil {
			return nil, err
		}
		b, err := c.operand(v, field, "b")
		if err != nil {
			return nil, err
		}
		return trivial.Compare{A: a, B: b}, nil
	case "labl":
		label, err := c.label(v, field)
		if err != nil {
			return nil, err
		}
		return trivial.Label{ID: label}, nil
	case "jump":
		label, err := c.label(v, field)
		if err != nil {
			return nil, err
		}
		if !v.LookupPath(cue.ParsePath("cond")).Exists() {
			return trivial.Jump{Label: label}, nil
		}
		cond, err := c.condition(v, field)
		if err != nil {
			return nil, err
		}
		return trivial.ConditionalJump{Label: label, Condition: cond}, nil
	case "asrt":
		cond, err := c.condition(v, field)
		if err != nil {
			return nil, err
		}
		return trivial.Assert{Condition: cond}, nil
	}

	binop, err := trivial.ParseBinaryOperator(op)
	if err != nil {
		return nil, &CompileError{Field: field + ".op", Message: err.Error(), Pos: opVal.Pos()}
	}
	a, err := c.operand(v, field, "a")
	if err != nil {
		return nil, err
	}
	b, err := c.operand(v, field, "b")
	if err != nil {
		return nil, err
	}
	x, err := c.operand(v, field, "x")
	if err != nil {
		return nil, err
	}
	return trivial.BinaryOperation{Op: binop, A: a, B: b, X: x}, nil
}

func (c *programCompiler) label(v cue.Value, field string) (trivial.LabelID, error) {
	labelVal := v.LookupPath(cue.ParsePath("label"))
	name, err := labelVal.String()
	if err != nil || name == "" {
		return 0, &CompileError{Field: field + ".label", Message: "label name is required", Pos: posOf(labelVal, v)}
	}
	id, ok := c.labels[name]
	if !ok {
		id = c.prog.CreateLabel()
		c.labels[name] = id
	}
	return id, nil
}

func (c *programCompiler) condition(v cue.Value, field string) (trivial.Condition, error) {
	condVal := v.LookupPath(cue.ParsePath("cond"))
	s, err := condVal.String()
	if err != nil {
		return 0, &CompileError{Field: field + ".cond", Message: "condition is required", Pos: posOf(condVal, v)}
	}
	cond, err := trivial.ParseCondition(s)
	if err != nil {
		return 0, &CompileError{Field: field + ".cond", Message: err.Error(), Pos: condVal.Pos()}
	}
	return cond, nil
}

func (c *programCompiler) operand(instr cue.Value, field, name string) (trivial.Value, error) {
	v := instr.LookupPath(cue.MakePath(cue.Str(name)))
	path := field + "." + name
	if !v.Exists() {
		return trivial.Value{}, &CompileError{Field: path, Message: name + " is required", Pos: instr.Pos()}
	}
	return c.value(v, path)
}

func (c *programCompiler) value(v cue.Value, path string) (trivial.Value, error) {
	switch v.Kind() {
	case cue.StringKind:
		name, _ := v.String()
		id, ok := c.names[name]
		if !ok {
			return trivial.Value{}, &CompileError{Field: path, Message: fmt.Sprintf("unknown variable %q", name), Pos: v.Pos()}
		}
		return trivial.Var(id), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil || n != int64(int32(n)) {
			return trivial.Value{}, &CompileError{Field: path, Message: "integer literal out of i32 range", Pos: v.Pos()}
		}
		return trivial.Lit(native.Int(n)), nil
	case cue.FloatKind:
		f, err := v.Float64()
		if err != nil {
			return trivial.Value{}, formatCUEError(err)
		}
		return trivial.Lit(native.Float(f)), nil
	case cue.BoolKind:
		b, _ := v.Bool()
		return trivial.Lit(native.Bool(b)), nil
	case cue.StructKind:
		return c.access(v, path)
	}
	return trivial.Value{}, &CompileError{
		Field:   path,
		Message: fmt.Sprintf("unsupported operand kind %s", v.Kind()),
		Pos:     v.Pos(),
	}
}

// access compiles the struct operand form {var, proxy?, index?}.
func (c *programCompiler) access(v cue.Value, path string) (trivial.Value, error) {
	varVal := v.LookupPath(cue.ParsePath("var"))
	if !varVal.Exists() {
		return trivial.Value{}, &CompileError{Field: path + ".var", Message: "var is required", Pos: v.Pos()}
	}
	result, err := c.value(varVal, path+".var")
	if err != nil {
		return trivial.Value{}, err
	}

	if indexVal := v.LookupPath(cue.ParsePath("index")); indexVal.Exists() {
		iter, err := indexVal.List()
		if err != nil {
			return trivial.Value{}, formatCUEError(err)
		}
		for i := 0; iter.Next(); i++ {
			idx, err := c.value(iter.Value(), fmt.Sprintf("%s.index[%d]", path, i))
			if err != nil {
				return trivial.Value{}, err
			}
			result = result.Indexed(idx)
		}
	}

	if proxyVal := v.LookupPath(cue.ParsePath("proxy")); proxyVal.Exists() {
		s, err := proxyVal.String()
		if err != nil {
			return trivial.Value{}, &CompileError{Field: path + ".proxy", Message: "proxy must be a string", Pos: proxyVal.Pos()}
		}
		dims, err := native.ParseDims(s)
		if err != nil || len(dims) == 0 {
			msg := fmt.Sprintf("invalid proxy %q", s)
			if err != nil {
				msg = err.Error()
			}
			return trivial.Value{}, &CompileError{Field: path + ".proxy", Message: msg, Pos: proxyVal.Pos()}
		}
		result = result.Proxied(dims...)
	}
	return result, nil
}

func posOf(v, fallback cue.Value) token.Pos {
	if v.Exists() {
		return v.Pos()
	}
	return fallback.Pos()
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
