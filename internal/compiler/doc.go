// Package compiler turns CUE program descriptions into trivial programs.
//
// A program description is a CUE struct with four fields:
//
//	variables: {
//		a:   "i32"
//		row: "[3]i32"
//		out: "[2][3]i32"
//	}
//	inputs:  ["a", "row"]
//	outputs: ["out"]
//	instructions: [
//		{op: "addi", a: {var: "row", proxy: "[2>X][3]"}, b: "a", x: "out"},
//		{op: "comp", a: "a", b: 0},
//		{op: "asrt", cond: "ge"},
//	]
//
// Variable types use the dump notation parsed by native.ParseType. An
// operand is a variable name, a number or bool literal (CUE ints become i32,
// CUE floats become f32), or a struct {var, proxy?, index?}. Labels are
// referenced by name and numbered in order of first mention.
//
// CompileProgram performs structural compilation and reports the first
// problem as a CompileError carrying the CUE source position. Validate runs
// semantic checks over the compiled program and collects every finding.
// AnalyzeLoops reports control-flow cycles formed by labels and jumps.
package compiler
