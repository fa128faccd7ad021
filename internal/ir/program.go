package ir

import (
	"fmt"
	"slices"
	"strings"
)

// Instruction is the capability a stage's instruction set must provide to be
// stored in a Program.
type Instruction interface {
	fmt.Stringer
	// Reads lists the variables whose current values the instruction uses.
	Reads() []VariableID
	// Writes lists the variables the instruction overwrites.
	Writes() []VariableID
}

// Annotation is the liveness information attached to one instruction.
type Annotation struct {
	// Births are variables whose value produced here is consumed later.
	Births []VariableID
	// Kills are variables whose value is no longer needed after here.
	Kills []VariableID
}

type statusKind uint8

const (
	unused statusKind = iota
	readAt
	writtenAt
)

type status struct {
	kind statusKind
	at   int
}

// Program is a variable table plus an ordered instruction list with
// incrementally maintained liveness.
//
// A Program is not safe for concurrent use. After Finalize it must be
// treated as read-only.
type Program[I Instruction] struct {
	variables    []Variable
	instructions []I
	annotations  []Annotation
	status       []status
	inputs       []VariableID
	outputs      []VariableID
	finalized    bool
}

// NewProgram creates an empty program.
func NewProgram[I Instruction]() *Program[I] {
	return &Program[I]{}
}

// AdoptVariable appends v to the variable table and returns its identity.
func (p *Program[I]) AdoptVariable(v Variable) VariableID {
	p.mustBeOpen("adopt variable")
	id := VariableID(len(p.variables))
	p.variables = append(p.variables, v)
	p.status = append(p.status, status{kind: unused})
	return id
}

// Variable returns the table entry for id. Panics on an unknown id.
func (p *Program[I]) Variable(id VariableID) Variable {
	p.mustExist(id)
	return p.variables[id]
}

// Variables returns the variable table. The slice is shared.
func (p *Program[I]) Variables() []Variable {
	return p.variables
}

// AddInput declares id as the next program input.
func (p *Program[I]) AddInput(id VariableID) {
	p.mustBeOpen("add input")
	p.mustExist(id)
	p.inputs = append(p.inputs, id)
}

// AddOutput declares id as the next program output. Outputs are never
// killed by Finalize.
func (p *Program[I]) AddOutput(id VariableID) {
	p.mustBeOpen("add output")
	p.mustExist(id)
	p.outputs = append(p.outputs, id)
}

// Inputs returns the declared inputs in order.
func (p *Program[I]) Inputs() []VariableID { return p.inputs }

// Outputs returns the declared outputs in order.
func (p *Program[I]) Outputs() []VariableID { return p.outputs }

// AddInstruction appends instr and updates liveness.
func (p *Program[I]) AddInstruction(instr I) {
	p.mustBeOpen("add instruction")
	current := len(p.instructions)
	p.instructions = append(p.instructions, instr)
	p.annotations = append(p.annotations, Annotation{})

	for _, id := range instr.Reads() {
		p.mustExist(id)
		st := p.status[id]
		if st.kind == writtenAt {
			p.annotations[st.at].Births = appendUnique(p.annotations[st.at].Births, id)
		}
		p.status[id] = status{kind: readAt, at: current}
	}
	for _, id := range instr.Writes() {
		p.mustExist(id)
		st := p.status[id]
		if st.kind == readAt {
			p.annotations[st.at].Kills = appendUnique(p.annotations[st.at].Kills, id)
		}
		p.status[id] = status{kind: writtenAt, at: current}
	}
}

// Finalize seals the program. Every variable still waiting in the read
// state is killed at its last read unless it is a declared output.
// Calling Finalize twice is a no-op.
func (p *Program[I]) Finalize() {
	if p.finalized {
		return
	}
	for i, st := range p.status {
		id := VariableID(i)
		if st.kind != readAt || slices.Contains(p.outputs, id) {
			continue
		}
		p.annotations[st.at].Kills = appendUnique(p.annotations[st.at].Kills, id)
	}
	p.finalized = true
}

// IsFinalized reports whether Finalize has been called.
func (p *Program[I]) IsFinalized() bool { return p.finalized }

// Instructions returns the instruction list. The slice is shared.
func (p *Program[I]) Instructions() []I { return p.instructions }

// Annotation returns the liveness annotation of instruction i.
func (p *Program[I]) Annotation(i int) Annotation {
	return p.annotations[i]
}

// Annotations returns every annotation, index-aligned with Instructions.
func (p *Program[I]) Annotations() []Annotation { return p.annotations }

// CheckAccess panics if the static part of a reaches outside the variable's
// stored elements. An out-of-bounds access here is a lowering bug.
func (p *Program[I]) CheckAccess(a VariableAccess) {
	v := p.Variable(a.Variable)
	if a.Offset < 0 || a.Length < 0 || a.Offset+a.Length > v.Type.ElementCount() {
		panic(fmt.Sprintf("ir: access %s outside %s (%d elements)", a, a.Variable, v.Type.ElementCount()))
	}
	for _, idx := range a.Indexes {
		p.mustExist(idx.Variable)
	}
}

// String dumps the program in a stable textual form.
func (p *Program[I]) String() string {
	var b strings.Builder
	b.WriteString("variables:\n")
	for i, v := range p.variables {
		fmt.Fprintf(&b, "  %s: %s", VariableID(i), v.Type)
		if v.Name != "" {
			fmt.Fprintf(&b, " (%s)", v.Name)
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "inputs: %s\n", joinIDs(p.inputs))
	fmt.Fprintf(&b, "outputs: %s\n", joinIDs(p.outputs))
	b.WriteString("instructions:\n")
	for i, instr := range p.instructions {
		fmt.Fprintf(&b, "  %s", instr)
		if ann := p.annotations[i]; len(ann.Births) > 0 || len(ann.Kills) > 0 {
			b.WriteString("  ;")
			if len(ann.Births) > 0 {
				fmt.Fprintf(&b, " born %s", joinIDs(ann.Births))
			}
			if len(ann.Kills) > 0 {
				fmt.Fprintf(&b, " dies %s", joinIDs(ann.Kills))
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func (p *Program[I]) mustBeOpen(op string) {
	if p.finalized {
		panic("ir: cannot " + op + " after Finalize")
	}
}

func (p *Program[I]) mustExist(id VariableID) {
	if id < 0 || int(id) >= len(p.variables) {
		panic(fmt.Sprintf("ir: unknown variable %s", id))
	}
}

func appendUnique(ids []VariableID, id VariableID) []VariableID {
	if slices.Contains(ids, id) {
		return ids
	}
	return append(ids, id)
}

func joinIDs(ids []VariableID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, ", ")
}
