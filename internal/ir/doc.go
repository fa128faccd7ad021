// Package ir provides the program container shared by every lowering stage.
//
// A Program owns a variable table, an append-only instruction list and the
// liveness state of every variable. It is parametric over the instruction
// set: the only thing it needs from an instruction is which variables it
// reads and which it writes. Each stage (trivial, specialized, ...) defines
// its own tagged instruction variants and reuses the same container.
//
// Liveness is computed in a single pass while instructions are appended.
// Every variable is in one of three states: unused, read at instruction j,
// or written at instruction i. Reading a variable whose last access was a
// write at i records a birth on i. Writing a variable whose last access was
// a read at j records a kill on j. Finalize kills every variable still in
// the read state at its last read, except declared outputs.
//
// Lifecycle:
//
//	p := ir.NewProgram[trivial.Instruction]()
//	a := p.AdoptVariable(ir.Variable{Type: native.IntScalar()})
//	p.AddInstruction(...)
//	p.Finalize()
//	// read-only from here on
//
// Variable identity is local to one program. Lowering between stages goes
// through a per-call translation table.
package ir
