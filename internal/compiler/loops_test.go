package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/waveguide/internal/native"
	"github.com/roach88/waveguide/internal/trivial"
)

func TestAnalyzeLoops_Empty(t *testing.T) {
	p := trivial.NewProgram()
	p.Finalize()
	warnings := AnalyzeLoops(p)
	assert.Empty(t, warnings)
}

func TestAnalyzeLoops_StraightLine(t *testing.T) {
	p, err := compileString(t, `
		variables: a: "i32"
		inputs: ["a"]
		outputs: ["a"]
		instructions: [
			{op: "addi", a: "a", b: 1, x: "a"},
			{op: "comp", a: "a", b: 0},
			{op: "jump", label: "skip", cond: "eq"},
			{op: "subi", a: "a", b: 1, x: "a"},
			{op: "labl", label: "skip"},
			{op: "comp", a: "a", b: 0},
			{op: "asrt", cond: "ge"},
		]
	`)
	require.NoError(t, err)

	warnings := AnalyzeLoops(p)
	assert.Empty(t, warnings, "forward jumps should produce no warnings")
}

func TestAnalyzeLoops_CountedLoop(t *testing.T) {
	p, err := compileString(t, `
		variables: n: "i32"
		inputs: ["n"]
		outputs: ["n"]
		instructions: [
			{op: "labl", label: "top"},
			{op: "subi", a: "n", b: 1, x: "n"},
			{op: "comp", a: "n", b: 0},
			{op: "jump", label: "top", cond: "gt"},
		]
	`)
	require.NoError(t, err)

	warnings := AnalyzeLoops(p)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"l0", "l0"}, warnings[0].Path)
	assert.Equal(t, "info", warnings[0].Level)
	assert.Equal(t, "loop l0 -> l0", warnings[0].Message)
}

func TestAnalyzeLoops_NoExit(t *testing.T) {
	p := trivial.NewProgram()
	n := p.NewVariable(native.IntScalar(), "n")
	p.AddInput(n)
	a, b := p.CreateLabel(), p.CreateLabel()
	p.AddInstruction(trivial.Label{ID: a})
	p.AddInstruction(trivial.Jump{Label: b})
	p.AddInstruction(trivial.Label{ID: b})
	p.AddInstruction(trivial.Compare{A: trivial.Var(n), B: trivial.Lit(native.Int(0))})
	p.AddInstruction(trivial.Assert{Condition: trivial.GreaterThan})
	p.AddInstruction(trivial.Jump{Label: a})
	p.Finalize()

	warnings := AnalyzeLoops(p)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"l0", "l1", "l0"}, warnings[0].Path)
	assert.Equal(t, "warning", warnings[0].Level)
	assert.Contains(t, warnings[0].Message, "without conditional exit")
}

func TestAnalyzeLoops_TwoLoops(t *testing.T) {
	p, err := compileString(t, `
		variables: n: "i32"
		inputs: ["n"]
		outputs: ["n"]
		instructions: [
			{op: "labl", label: "first"},
			{op: "subi", a: "n", b: 1, x: "n"},
			{op: "comp", a: "n", b: 5},
			{op: "jump", label: "first", cond: "gt"},
			{op: "labl", label: "second"},
			{op: "subi", a: "n", b: 1, x: "n"},
			{op: "jump", label: "second"},
		]
	`)
	require.NoError(t, err)

	warnings := AnalyzeLoops(p)
	require.Len(t, warnings, 2)
	assert.Equal(t, "info", warnings[0].Level)
	assert.Equal(t, []string{"l0", "l0"}, warnings[0].Path)
	assert.Equal(t, "warning", warnings[1].Level)
	assert.Equal(t, []string{"l1", "l1"}, warnings[1].Path)
}
