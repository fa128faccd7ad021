// Package trivial defines the trivial IR: scalar and whole-array operations
// over typed variables, consumed by the specializer.
//
// Values may carry dynamic indexes and a per-dimension proxy list that
// describes how an operand is broadcast against the shape of the operation
// it appears in. Control flow (labels and jumps) exists at this stage so that
// earlier passes can produce it, but the specializer only accepts
// straight-line programs.
//
// Liveness is tracked by the shared ir.Program container; a trivial Program
// only adds a label counter on top of it.
package trivial
