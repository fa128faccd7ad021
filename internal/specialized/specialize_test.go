package specialized

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/waveguide/internal/ir"
	"github.com/roach88/waveguide/internal/native"
	"github.com/roach88/waveguide/internal/trivial"
)

func keep(n int) native.Dim    { return native.Dim{Size: n, Proxy: native.Keep} }
func discard(n int) native.Dim { return native.Dim{Size: n, Proxy: native.Discard} }
func collapse(n int) native.Dim {
	return native.Dim{Size: n, Proxy: native.Collapse}
}

// offsets extracts the element offset of one operand from every instruction.
func offsets(t *testing.T, p *Program, pick func(BinaryOperation) ir.Value) []int {
	t.Helper()
	var result []int
	for _, instr := range p.Instructions() {
		op, ok := instr.(BinaryOperation)
		require.True(t, ok, "unexpected instruction %s", instr)
		access, ok := pick(op).(ir.VariableAccess)
		require.True(t, ok, "operand of %s is not a variable access", op)
		assert.Equal(t, 1, access.Length)
		result = append(result, access.Offset)
	}
	return result
}

func operandA(op BinaryOperation) ir.Value { return op.A }
func operandB(op BinaryOperation) ir.Value { return op.B }
func operandX(op BinaryOperation) ir.Value { return op.X }

// gridProgram builds x = a op b over [2][3] with b given by the caller.
func gridProgram(bType native.Type, b func(ir.VariableID) trivial.Value) *trivial.Program {
	p := trivial.NewProgram()
	a := p.NewVariable(native.ArrayType(native.I32, 2, 3), "a")
	bid := p.NewVariable(bType, "b")
	x := p.NewVariable(native.ArrayType(native.I32, 2, 3), "x")
	p.AddInput(a)
	p.AddInput(bid)
	p.AddOutput(x)
	p.AddInstruction(trivial.BinaryOperation{Op: trivial.AddI, A: trivial.Var(a), B: b(bid), X: trivial.Var(x)})
	return p
}

func TestExpandKeepOperandsFollowCoordinates(t *testing.T) {
	src := gridProgram(native.ArrayType(native.I32, 2, 3), trivial.Var)

	p, err := Specialize(src)
	require.NoError(t, err)

	require.Len(t, p.Instructions(), 6)
	want := []int{0, 1, 2, 3, 4, 5}
	assert.Equal(t, want, offsets(t, p, operandA))
	assert.Equal(t, want, offsets(t, p, operandB))
	assert.Equal(t, want, offsets(t, p, operandX))
	for _, instr := range p.Instructions() {
		assert.Equal(t, Op(AddI), instr.(BinaryOperation).Op)
	}
}

func TestExpandDiscardedRowRepeatsAcrossRows(t *testing.T) {
	src := gridProgram(native.ArrayType(native.I32, 3), func(id ir.VariableID) trivial.Value {
		return trivial.Var(id).Proxied(discard(2), keep(3))
	})

	p, err := Specialize(src)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2, 0, 1, 2}, offsets(t, p, operandB))
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, offsets(t, p, operandA))
}

func TestExpandDiscardedOperandAddressesElementZero(t *testing.T) {
	src := gridProgram(native.ArrayType(native.I32, 3), func(id ir.VariableID) trivial.Value {
		return trivial.Var(id).Proxied(discard(2), collapse(3))
	})

	p, err := Specialize(src)
	require.NoError(t, err)

	require.Len(t, p.Instructions(), 6)
	assert.Equal(t, []int{0, 0, 0, 0, 0, 0}, offsets(t, p, operandB))
}

func TestExpandUsesProxyOfVariableType(t *testing.T) {
	// b is declared [2>X][3]: it is stored as [3] but indexed like [2][3].
	bType := native.ArrayTypeOf(native.I32, []native.Dim{discard(2), keep(3)})
	src := gridProgram(bType, trivial.Var)

	p, err := Specialize(src)
	require.NoError(t, err)

	assert.Equal(t, "[3]i32", p.Variable(p.Inputs()[1]).Type.String())
	assert.Equal(t, []int{0, 1, 2, 0, 1, 2}, offsets(t, p, operandB))
}

func TestExpandScalarOperandsBroadcast(t *testing.T) {
	src := gridProgram(native.IntScalar(), trivial.Var)

	p, err := Specialize(src)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 0, 0, 0, 0, 0}, offsets(t, p, operandB))
}

func TestExpandLiteralOperandsStayLiteral(t *testing.T) {
	src := gridProgram(native.IntScalar(), func(ir.VariableID) trivial.Value {
		return trivial.Lit(native.Int(7))
	})

	p, err := Specialize(src)
	require.NoError(t, err)

	require.Len(t, p.Instructions(), 6)
	for _, instr := range p.Instructions() {
		assert.Equal(t, ir.Literal{Data: native.Int(7)}, instr.(BinaryOperation).B)
	}
}

func TestExpandResultProxyDefinesShape(t *testing.T) {
	p := trivial.NewProgram()
	a := p.NewVariable(native.ArrayType(native.F32, 4), "a")
	x := p.NewVariable(native.ArrayType(native.F32, 4), "x")
	p.AddInput(a)
	p.AddOutput(x)
	p.AddInstruction(trivial.BinaryOperation{
		Op: trivial.MulF,
		A:  trivial.Var(a).Proxied(keep(4), discard(2)),
		B:  trivial.Lit(native.Float(2)),
		X:  trivial.Var(x).Proxied(keep(4), discard(2)),
	})

	sp, err := Specialize(p)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 0, 1, 1, 2, 2, 3, 3}, offsets(t, sp, operandX))
}

func TestScalarOperationEmitsOneInstruction(t *testing.T) {
	p := trivial.NewProgram()
	a := p.NewVariable(native.IntScalar(), "a")
	b := p.NewVariable(native.IntScalar(), "b")
	x := p.NewVariable(native.IntScalar(), "x")
	p.AddInput(a)
	p.AddInput(b)
	p.AddOutput(x)
	p.AddInstruction(trivial.BinaryOperation{Op: trivial.SubI, A: trivial.Var(b), B: trivial.Var(a), X: trivial.Var(x)})

	sp, err := Specialize(p)
	require.NoError(t, err)

	require.Len(t, sp.Instructions(), 1)
	op := sp.Instructions()[0].(BinaryOperation)
	// Operands are never commuted.
	assert.Equal(t, "subi v1[len=1], v0[len=1] -> v2[len=1]", op.String())
}

func TestVariablesAreMemoized(t *testing.T) {
	p := trivial.NewProgram()
	a := p.NewVariable(native.IntScalar(), "a")
	unused := p.NewVariable(native.FloatScalar(), "unused")
	p.AddInput(a)
	p.AddOutput(a)
	p.AddInstruction(trivial.BinaryOperation{Op: trivial.AddI, A: trivial.Var(a), B: trivial.Var(a), X: trivial.Var(a)})
	_ = unused

	sp, err := Specialize(p)
	require.NoError(t, err)

	assert.Len(t, sp.Variables(), 1)
	assert.Equal(t, sp.Inputs(), sp.Outputs())
	assert.True(t, sp.IsFinalized())
}

func TestConditionsAndComparesLowerOneToOne(t *testing.T) {
	p := trivial.NewProgram()
	a := p.NewVariable(native.IntScalar(), "a")
	p.AddInput(a)
	conditions := []trivial.Condition{
		trivial.LessThan, trivial.GreaterThan, trivial.LessThanOrEqual,
		trivial.GreaterThanOrEqual, trivial.Equal, trivial.NotEqual,
	}
	for _, c := range conditions {
		p.AddInstruction(trivial.Compare{A: trivial.Var(a), B: trivial.Lit(native.Int(0))})
		p.AddInstruction(trivial.Assert{Condition: c})
	}

	sp, err := Specialize(p)
	require.NoError(t, err)

	require.Len(t, sp.Instructions(), 2*len(conditions))
	for i, c := range conditions {
		assert.Equal(t, "comp v0[len=1], 0i32", sp.Instructions()[2*i].String())
		assert.Equal(t, "asrt "+c.String(), sp.Instructions()[2*i+1].String())
	}
}

func TestMoveLowersStructurally(t *testing.T) {
	p := trivial.NewProgram()
	a := p.NewVariable(native.ArrayType(native.B8, 4), "a")
	b := p.NewVariable(native.ArrayType(native.B8, 4), "b")
	p.AddInput(a)
	p.AddOutput(b)
	p.AddInstruction(trivial.Move{From: trivial.Var(a), To: trivial.Var(b)})

	sp, err := Specialize(p)
	require.NoError(t, err)

	require.Len(t, sp.Instructions(), 1)
	assert.Equal(t, "move v0[len=4] -> v1[len=4]", sp.Instructions()[0].String())
}

// moveOffsets returns the (from, to) element offsets of every instruction,
// which must all be single-element moves between variables.
func moveOffsets(t *testing.T, p *Program) (from, to []int) {
	t.Helper()
	for _, instr := range p.Instructions() {
		m, ok := instr.(Move)
		require.True(t, ok, "unexpected instruction %s", instr)
		src, ok := m.From.(ir.VariableAccess)
		require.True(t, ok, "source of %s is not a variable access", m)
		dst, ok := m.To.(ir.VariableAccess)
		require.True(t, ok, "destination of %s is not a variable access", m)
		assert.Equal(t, 1, src.Length)
		assert.Equal(t, 1, dst.Length)
		from = append(from, src.Offset)
		to = append(to, dst.Offset)
	}
	return from, to
}

func TestMoveCollapsedSourceRepeatsFirstElement(t *testing.T) {
	p := trivial.NewProgram()
	src := p.NewVariable(native.ArrayType(native.I32, 3), "src")
	dst := p.NewVariable(native.ArrayType(native.I32, 3), "dst")
	p.AddInput(src)
	p.AddOutput(dst)
	p.AddInstruction(trivial.Move{From: trivial.Var(src).Proxied(collapse(3)), To: trivial.Var(dst)})

	sp, err := Specialize(p)
	require.NoError(t, err)

	require.Len(t, sp.Instructions(), 3)
	from, to := moveOffsets(t, sp)
	assert.Equal(t, []int{0, 0, 0}, from)
	assert.Equal(t, []int{0, 1, 2}, to)
}

func TestMoveDiscardedSourceRepeatsAcrossRows(t *testing.T) {
	p := trivial.NewProgram()
	src := p.NewVariable(native.ArrayType(native.I32, 3), "src")
	dst := p.NewVariable(native.ArrayType(native.I32, 2, 3), "dst")
	p.AddInput(src)
	p.AddOutput(dst)
	p.AddInstruction(trivial.Move{From: trivial.Var(src).Proxied(discard(2), keep(3)), To: trivial.Var(dst)})

	sp, err := Specialize(p)
	require.NoError(t, err)

	from, to := moveOffsets(t, sp)
	assert.Equal(t, []int{0, 1, 2, 0, 1, 2}, from)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, to)
}

func TestMoveIntoProxiedTypeExpands(t *testing.T) {
	// dst is declared [2>X][3]: both rows land on the same storage.
	p := trivial.NewProgram()
	src := p.NewVariable(native.ArrayType(native.I32, 2, 3), "src")
	dst := p.NewVariable(native.ArrayTypeOf(native.I32, []native.Dim{discard(2), keep(3)}), "dst")
	p.AddInput(src)
	p.AddOutput(dst)
	p.AddInstruction(trivial.Move{From: trivial.Var(src), To: trivial.Var(dst)})

	sp, err := Specialize(p)
	require.NoError(t, err)

	from, to := moveOffsets(t, sp)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, from)
	assert.Equal(t, []int{0, 1, 2, 0, 1, 2}, to)
}

func TestLoweringErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func(p *trivial.Program, s, arr ir.VariableID)
		code  LoweringErrorCode
		at    int
	}{
		{
			name: "indexed literal",
			build: func(p *trivial.Program, s, _ ir.VariableID) {
				p.AddInstruction(trivial.Move{From: trivial.Lit(native.Int(1)).Indexed(trivial.Var(s)), To: trivial.Var(s)})
			},
			code: ErrCodeUnsupportedOperand,
		},
		{
			name: "indexed variable",
			build: func(p *trivial.Program, s, arr ir.VariableID) {
				p.AddInstruction(trivial.Move{From: trivial.Lit(native.Int(1)), To: trivial.Var(s)})
				p.AddInstruction(trivial.Move{From: trivial.Var(arr).Indexed(trivial.Var(s)), To: trivial.Var(s)})
			},
			code: ErrCodeUnsupportedOperand,
			at:   1,
		},
		{
			name: "move into literal",
			build: func(p *trivial.Program, s, _ ir.VariableID) {
				p.AddInstruction(trivial.Move{From: trivial.Var(s), To: trivial.Lit(native.Int(1))})
			},
			code: ErrCodeUnsupportedOperand,
		},
		{
			name: "result is a literal",
			build: func(p *trivial.Program, s, _ ir.VariableID) {
				p.AddInstruction(trivial.BinaryOperation{Op: trivial.AddI, A: trivial.Var(s), B: trivial.Var(s), X: trivial.Lit(native.Int(0))})
			},
			code: ErrCodeUnsupportedOperand,
		},
		{
			name: "jump",
			build: func(p *trivial.Program, _, _ ir.VariableID) {
				p.AddInstruction(trivial.Jump{Label: p.CreateLabel()})
			},
			code: ErrCodeUnsupportedInstruction,
		},
		{
			name: "not",
			build: func(p *trivial.Program, s, _ ir.VariableID) {
				p.AddInstruction(trivial.Not{A: trivial.Var(s), X: trivial.Var(s)})
			},
			code: ErrCodeUnsupportedInstruction,
		},
		{
			name: "proxy arity differs from result shape",
			build: func(p *trivial.Program, _, arr ir.VariableID) {
				p.AddInstruction(trivial.BinaryOperation{
					Op: trivial.AddI,
					A:  trivial.Var(arr).Proxied(keep(3), keep(1)),
					B:  trivial.Var(arr),
					X:  trivial.Var(arr),
				})
			},
			code: ErrCodeShapeMismatch,
		},
		{
			name: "array operand in scalar operation",
			build: func(p *trivial.Program, s, arr ir.VariableID) {
				p.AddInstruction(trivial.BinaryOperation{Op: trivial.AddI, A: trivial.Var(arr), B: trivial.Var(s), X: trivial.Var(s)})
			},
			code: ErrCodeShapeMismatch,
		},
		{
			name: "array compare operand",
			build: func(p *trivial.Program, _, arr ir.VariableID) {
				p.AddInstruction(trivial.Compare{A: trivial.Var(arr), B: trivial.Lit(native.Int(0))})
			},
			code: ErrCodeShapeMismatch,
		},
		{
			name: "proxied compare operand",
			build: func(p *trivial.Program, s, _ ir.VariableID) {
				p.AddInstruction(trivial.Compare{A: trivial.Var(s), B: trivial.Var(s).Proxied(keep(2))})
			},
			code: ErrCodeShapeMismatch,
		},
		{
			name: "indexed move destination",
			build: func(p *trivial.Program, s, arr ir.VariableID) {
				p.AddInstruction(trivial.Move{From: trivial.Lit(native.Int(1)), To: trivial.Var(arr).Indexed(trivial.Var(s))})
			},
			code: ErrCodeUnsupportedOperand,
		},
		{
			name: "move array into scalar",
			build: func(p *trivial.Program, s, arr ir.VariableID) {
				p.AddInstruction(trivial.Move{From: trivial.Var(arr), To: trivial.Var(s)})
			},
			code: ErrCodeShapeMismatch,
		},
		{
			name: "proxy larger than variable",
			build: func(p *trivial.Program, _, arr ir.VariableID) {
				p.AddInstruction(trivial.BinaryOperation{
					Op: trivial.AddI,
					A:  trivial.Var(arr),
					B:  trivial.Var(arr),
					X:  trivial.Var(arr).Proxied(keep(5)),
				})
			},
			code: ErrCodeShapeMismatch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := trivial.NewProgram()
			s := p.NewVariable(native.IntScalar(), "s")
			arr := p.NewVariable(native.ArrayType(native.I32, 3), "arr")
			tt.build(p, s, arr)

			sp, err := Specialize(p)
			require.Error(t, err)
			assert.Nil(t, sp)
			assert.True(t, IsLoweringError(err))
			assert.Equal(t, tt.code, LoweringErrorCodeOf(err))

			var le *LoweringError
			require.ErrorAs(t, err, &le)
			assert.Equal(t, tt.at, le.Instruction)
		})
	}
}

func TestLoweringErrorMessage(t *testing.T) {
	err := &LoweringError{Code: ErrCodeShapeMismatch, Message: "bad", Instruction: 3}
	assert.Equal(t, "SHAPE_MISMATCH: bad (instruction 3)", err.Error())

	err = &LoweringError{Code: ErrCodeUnsupportedOperand, Message: "bad", Instruction: -1}
	assert.Equal(t, "UNSUPPORTED_OPERAND: bad", err.Error())
	assert.False(t, IsLoweringError(assert.AnError))
}

func TestOperatorNames(t *testing.T) {
	assert.Equal(t, "addi", Op(AddI).String())
	assert.Equal(t, "bxor", Op(BXor).String())
	assert.Equal(t, "addpackedf256", Packed(AddF, W256).String())
	assert.Equal(t, "modpackedi512", Packed(ModI, W512).String())
	assert.True(t, Packed(MulI, W128).IsPacked())
	assert.False(t, Op(MulI).IsPacked())
	assert.Panics(t, func() { Packed(BAnd, W128) })
	assert.Panics(t, func() { Packed(AddI, 64) })
}

func TestSpecializedDumps(t *testing.T) {
	scalar := trivial.NewProgram()
	a := scalar.NewVariable(native.IntScalar(), "a")
	tmp := scalar.NewVariable(native.IntScalar(), "t")
	out := scalar.NewVariable(native.IntScalar(), "out")
	scalar.AddInput(a)
	scalar.AddOutput(out)
	scalar.AddInstruction(trivial.BinaryOperation{Op: trivial.MulI, A: trivial.Var(a), B: trivial.Lit(native.Int(3)), X: trivial.Var(tmp)})
	scalar.AddInstruction(trivial.BinaryOperation{Op: trivial.AddI, A: trivial.Var(tmp), B: trivial.Lit(native.Int(1)), X: trivial.Var(out)})
	scalar.AddInstruction(trivial.Compare{A: trivial.Var(out), B: trivial.Lit(native.Int(100))})
	scalar.AddInstruction(trivial.Assert{Condition: trivial.LessThan})

	broadcast := gridProgram(native.ArrayType(native.I32, 3), func(id ir.VariableID) trivial.Value {
		return trivial.Var(id).Proxied(discard(2), keep(3))
	})

	tests := []struct {
		name string
		src  *trivial.Program
	}{
		{"scalar_chain", scalar},
		{"broadcast_row", broadcast},
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Specialize(tt.src)
			require.NoError(t, err)
			g.Assert(t, tt.name, []byte(p.String()))
		})
	}
}
