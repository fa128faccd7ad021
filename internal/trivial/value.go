package trivial

import (
	"fmt"
	"strings"

	"github.com/roach88/waveguide/internal/ir"
	"github.com/roach88/waveguide/internal/native"
)

// Base is what a Value refers to: a Literal or a Variable.
type Base interface {
	fmt.Stringer
	trivialBase()
}

// Literal is an inline constant.
type Literal struct {
	Data native.Data
}

func (Literal) trivialBase() {}

func (l Literal) String() string { return l.Data.String() }

// Variable refers to an entry of the program's variable table.
type Variable struct {
	ID ir.VariableID
}

func (Variable) trivialBase() {}

func (v Variable) String() string { return v.ID.String() }

// Value is an operand of a trivial instruction.
//
// Indexes select into the leading dimensions of an array base. Proxy, when
// non-empty, reinterprets the base as an array of len(Proxy) dimensions:
// each entry names the logical length of that dimension in the operation's
// shape and how it maps onto the base (see native.ApplyProxy).
type Value struct {
	Base    Base
	Indexes []Value
	Proxy   []native.Dim
}

// Lit wraps a constant.
func Lit(d native.Data) Value {
	return Value{Base: Literal{Data: d}}
}

// Var references a variable.
func Var(id ir.VariableID) Value {
	return Value{Base: Variable{ID: id}}
}

// Indexed returns a copy of v with extra indexes appended.
func (v Value) Indexed(indexes ...Value) Value {
	v.Indexes = append(append([]Value(nil), v.Indexes...), indexes...)
	return v
}

// Proxied returns a copy of v viewed through the given dimensions.
func (v Value) Proxied(dims ...native.Dim) Value {
	v.Proxy = append([]native.Dim(nil), dims...)
	return v
}

// VariableID returns the referenced variable, if the base is one.
func (v Value) VariableID() (ir.VariableID, bool) {
	if variable, ok := v.Base.(Variable); ok {
		return variable.ID, true
	}
	return 0, false
}

// IsPlain reports whether v is a bare variable reference with no indexes.
// A proxy does not make a value non-plain.
func (v Value) IsPlain() bool {
	_, ok := v.Base.(Variable)
	return ok && len(v.Indexes) == 0
}

// Type returns the type v has when used as an operand of p: the proxy view
// when present, otherwise the base type with one leading dimension removed
// per index.
func (v Value) Type(p *Program) native.Type {
	var base native.Type
	switch b := v.Base.(type) {
	case Literal:
		base = b.Data.Type()
	case Variable:
		base = p.Variable(b.ID).Type
	default:
		panic(fmt.Sprintf("trivial: unknown value base %T", v.Base))
	}
	if len(v.Proxy) > 0 {
		return native.ArrayTypeOf(base.Base(), v.Proxy)
	}
	if len(v.Indexes) > base.Rank() {
		panic(fmt.Sprintf("trivial: %s has %d indexes but rank %d", v, len(v.Indexes), base.Rank()))
	}
	return base.Unwrap(len(v.Indexes))
}

// sources lists the variables read when v is used as an input.
func (v Value) sources() []ir.VariableID {
	var ids []ir.VariableID
	if id, ok := v.VariableID(); ok {
		ids = append(ids, id)
	}
	for _, idx := range v.Indexes {
		ids = append(ids, idx.sources()...)
	}
	return ids
}

// target splits v used as a destination into written and read variables.
func (v Value) target() (written, read []ir.VariableID) {
	if id, ok := v.VariableID(); ok {
		written = []ir.VariableID{id}
	}
	for _, idx := range v.Indexes {
		read = append(read, idx.sources()...)
	}
	return written, read
}

// String renders v as in dumps: v0, v0[v1], v0<[2>X][3]>.
func (v Value) String() string {
	var b strings.Builder
	b.WriteString(v.Base.String())
	for _, idx := range v.Indexes {
		fmt.Fprintf(&b, "[%s]", idx)
	}
	if len(v.Proxy) > 0 {
		b.WriteByte('<')
		for _, d := range v.Proxy {
			fmt.Fprintf(&b, "[%d%s]", d.Size, d.Proxy.Symbol())
		}
		b.WriteByte('>')
	}
	return b.String()
}
