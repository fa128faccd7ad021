// Package specialized defines the target-oriented instruction set and the
// pass that lowers trivial programs into it.
//
// Lowering is mostly re-tagging: operators and conditions map one to one.
// The exception is broadcast expansion. A binary operation whose result is
// an array becomes one scalar instruction per element, emitted in the order
// produced by nvec.Enumerate, with every operand re-addressed to the element
// that corresponds to the current coordinate after proxy resolution.
package specialized
