// Package llvmir renders specialized programs as LLVM IR text.
//
// The module has one global byte array, @storage, laid out like the native
// backend's data region, and one function, @main, returning i64 with the
// same convention: 0 when every assert held, otherwise the ordinal of the
// first failing assert. Float compares follow the native backend's NaN
// handling: with a NaN operand LT, LE and EQ hold while GT, GE and NE fail.
// Compiling and running the module is left to an external LLVM toolchain.
package llvmir

import (
	"fmt"

	lir "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/roach88/waveguide/internal/ir"
	"github.com/roach88/waveguide/internal/native"
	"github.com/roach88/waveguide/internal/specialized"
)

var (
	intPreds = [...]enum.IPred{
		specialized.LessThan:           enum.IPredSLT,
		specialized.GreaterThan:        enum.IPredSGT,
		specialized.LessThanOrEqual:    enum.IPredSLE,
		specialized.GreaterThanOrEqual: enum.IPredSGE,
		specialized.Equal:              enum.IPredEQ,
		specialized.NotEqual:           enum.IPredNE,
	}
	// Unordered for LT, LE and EQ, ordered otherwise: a NaN operand makes
	// the first three hold, as on the native backend.
	floatPreds = [...]enum.FPred{
		specialized.LessThan:           enum.FPredULT,
		specialized.GreaterThan:        enum.FPredOGT,
		specialized.LessThanOrEqual:    enum.FPredULE,
		specialized.GreaterThanOrEqual: enum.FPredOGE,
		specialized.Equal:              enum.FPredUEQ,
		specialized.NotEqual:           enum.FPredONE,
	}
)

// EmitError reports an instruction with no LLVM rendering.
type EmitError struct {
	Instruction int
	Message     string
}

func (e *EmitError) Error() string {
	return fmt.Sprintf("llvm emission failed at instruction %d: %s", e.Instruction, e.Message)
}

type emitter struct {
	prog    *specialized.Program
	storage *lir.Global
	size    int
	offsets []int
	block   *lir.Block
	fn      *lir.Func

	cmpA, cmpB value.Value
	cmpFloat   bool
	compared   bool
	asserts    int
	current    int
}

// Emit returns the textual LLVM IR module for p.
func Emit(p *specialized.Program) (string, error) {
	m, err := Build(p)
	if err != nil {
		return "", err
	}
	return m.String(), nil
}

// Build constructs the LLVM IR module for p.
func Build(p *specialized.Program) (*lir.Module, error) {
	e := &emitter{prog: p}
	e.layout()

	m := lir.NewModule()
	storageType := types.NewArray(uint64(e.size), types.I8)
	e.storage = m.NewGlobalDef("storage", constant.NewZeroInitializer(storageType))
	e.fn = m.NewFunc("main", types.I64)
	e.block = e.fn.NewBlock("entry")

	for i, instr := range p.Instructions() {
		e.current = i
		if err := e.instruction(instr); err != nil {
			return nil, err
		}
	}
	e.block.NewRet(constant.NewInt(types.I64, 0))
	return m, nil
}

// layout places variables exactly where the native backend does.
func (e *emitter) layout() {
	l := ir.NewLayout(e.prog.Variables())
	e.offsets = l.Offsets
	e.size = max(l.Size, 1)
}

func (e *emitter) instruction(instr specialized.Instruction) error {
	switch instr := instr.(type) {
	case specialized.Move:
		to, ok := instr.To.(ir.VariableAccess)
		if !ok {
			return e.fail("move destination is not a variable")
		}
		base := e.baseOf(to)
		if from, ok := instr.From.(ir.VariableAccess); ok && e.baseOf(from) != base {
			return e.fail(fmt.Sprintf("move between %s and %s", e.baseOf(from), base))
		}
		for k := range to.Length {
			v, err := e.load(instr.From, k, base)
			if err != nil {
				return err
			}
			ptr, err := e.pointer(to, k)
			if err != nil {
				return err
			}
			e.block.NewStore(v, ptr)
		}
		return nil
	case specialized.BinaryOperation:
		return e.binaryOperation(instr)
	case specialized.Compare:
		for _, v := range []ir.Value{instr.A, instr.B} {
			if access, ok := v.(ir.VariableAccess); ok && access.Length != 1 {
				return e.fail(fmt.Sprintf("compare operand %s is not a single element", access))
			}
		}
		base := e.baseOf(instr.A)
		a, err := e.load(instr.A, 0, base)
		if err != nil {
			return err
		}
		b, err := e.load(instr.B, 0, base)
		if err != nil {
			return err
		}
		e.cmpA, e.cmpB, e.cmpFloat, e.compared = a, b, base == native.F32, true
		return nil
	case specialized.Assert:
		if !e.compared {
			return e.fail("assert without a preceding compare")
		}
		e.asserts++
		var cond value.Value
		if e.cmpFloat {
			cond = e.block.NewFCmp(floatPreds[instr.Condition], e.cmpA, e.cmpB)
		} else {
			cond = e.block.NewICmp(intPreds[instr.Condition], e.cmpA, e.cmpB)
		}
		ok := e.fn.NewBlock(fmt.Sprintf("assert%d.ok", e.asserts))
		failed := e.fn.NewBlock(fmt.Sprintf("assert%d.fail", e.asserts))
		failed.NewRet(constant.NewInt(types.I64, int64(e.asserts)))
		e.block.NewCondBr(cond, ok, failed)
		e.block = ok
		return nil
	default:
		return e.fail(fmt.Sprintf("unknown instruction %T", instr))
	}
}

func (e *emitter) binaryOperation(i specialized.BinaryOperation) error {
	if i.Op.IsPacked() {
		return e.fail("packed operations are not supported")
	}
	x, ok := i.X.(ir.VariableAccess)
	if !ok {
		return e.fail("result is not a variable")
	}
	base := e.baseOf(x)
	a, err := e.load(i.A, 0, base)
	if err != nil {
		return err
	}
	b, err := e.load(i.B, 0, base)
	if err != nil {
		return err
	}

	var result value.Value
	switch i.Op.Kind {
	case specialized.AddI:
		result = e.block.NewAdd(a, b)
	case specialized.SubI:
		result = e.block.NewSub(a, b)
	case specialized.MulI:
		result = e.block.NewMul(a, b)
	case specialized.DivI:
		result = e.block.NewSDiv(a, b)
	case specialized.ModI:
		result = e.block.NewSRem(a, b)
	case specialized.AddF:
		result = e.block.NewFAdd(a, b)
	case specialized.SubF:
		result = e.block.NewFSub(a, b)
	case specialized.MulF:
		result = e.block.NewFMul(a, b)
	case specialized.DivF:
		result = e.block.NewFDiv(a, b)
	case specialized.ModF:
		result = e.block.NewFRem(a, b)
	case specialized.BAnd:
		result = e.block.NewAnd(a, b)
	case specialized.BOr:
		result = e.block.NewOr(a, b)
	case specialized.BXor:
		result = e.block.NewXor(a, b)
	default:
		return e.fail(fmt.Sprintf("unknown operator %s", i.Op))
	}
	ptr, err := e.pointer(x, 0)
	if err != nil {
		return err
	}
	e.block.NewStore(result, ptr)
	return nil
}

// load reads element k of v as an LLVM value of the given base type.
func (e *emitter) load(v ir.Value, k int, base native.BaseType) (value.Value, error) {
	switch v := v.(type) {
	case ir.Literal:
		return literal(v.Data, base), nil
	case ir.VariableAccess:
		ptr, err := e.pointer(v, k)
		if err != nil {
			return nil, err
		}
		return e.block.NewLoad(llvmType(e.baseOf(v)), ptr), nil
	default:
		return nil, e.fail(fmt.Sprintf("unknown operand %T", v))
	}
}

// pointer returns a typed pointer to element k of a (element 0 when a covers
// a single element).
func (e *emitter) pointer(a ir.VariableAccess, k int) (value.Value, error) {
	if len(a.Indexes) > 0 {
		return nil, e.fail("dynamic indexes are not supported")
	}
	if a.Length == 1 {
		k = 0
	}
	base := e.baseOf(a)
	offset := e.offsets[a.Variable] + (a.Offset+k)*base.Size()
	storageType := types.NewArray(uint64(e.size), types.I8)
	raw := e.block.NewGetElementPtr(storageType, e.storage,
		constant.NewInt(types.I64, 0), constant.NewInt(types.I64, int64(offset)))
	if base == native.B8 {
		return raw, nil
	}
	return e.block.NewBitCast(raw, types.NewPointer(llvmType(base))), nil
}

func (e *emitter) baseOf(v ir.Value) native.BaseType {
	switch v := v.(type) {
	case ir.VariableAccess:
		return e.prog.Variable(v.Variable).Type.Base()
	case ir.Literal:
		return v.Data.Type().Base()
	}
	return native.I32
}

func llvmType(base native.BaseType) types.Type {
	switch base {
	case native.F32:
		return types.Float
	case native.B8:
		return types.I8
	default:
		return types.I32
	}
}

func literal(d native.Data, base native.BaseType) constant.Constant {
	switch v := d.(type) {
	case native.Float:
		return constant.NewFloat(types.Float, float64(float32(v)))
	case native.Int:
		if base == native.F32 {
			return constant.NewFloat(types.Float, float64(float32(v)))
		}
		return constant.NewInt(types.I32, int64(int32(v)))
	case native.Bool:
		if v {
			return constant.NewInt(types.I8, 1)
		}
		return constant.NewInt(types.I8, 0)
	}
	return constant.NewInt(types.I32, 0)
}

func (e *emitter) fail(msg string) error {
	return &EmitError{Instruction: e.current, Message: msg}
}
