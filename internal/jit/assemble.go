package jit

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/roach88/waveguide/internal/ir"
	"github.com/roach88/waveguide/internal/native"
	"github.com/roach88/waveguide/internal/specialized"
)

// General purpose and SSE register numbers as used in ModRM.reg.
const (
	eax = 0
	ecx = 1
	edx = 2

	xmm0 = 0
	xmm1 = 1
	xmm2 = 2
)

// dataBasePatch is the offset of the imm64 in the prologue that receives the
// data region address.
const dataBasePatch = 2

type flagState uint8

const (
	noFlags flagState = iota
	signedFlags
	unorderedFlags
)

// Jcc rel8 opcodes that jump when the condition holds, by flag state.
var (
	signedJumps = [...]byte{
		specialized.LessThan:           0x7C, // jl
		specialized.GreaterThan:        0x7F, // jg
		specialized.LessThanOrEqual:    0x7E, // jle
		specialized.GreaterThanOrEqual: 0x7D, // jge
		specialized.Equal:              0x74, // je
		specialized.NotEqual:           0x75, // jne
	}
	unorderedJumps = [...]byte{
		specialized.LessThan:           0x72, // jb
		specialized.GreaterThan:        0x77, // ja
		specialized.LessThanOrEqual:    0x76, // jbe
		specialized.GreaterThanOrEqual: 0x73, // jae
		specialized.Equal:              0x74, // je
		specialized.NotEqual:           0x75, // jne
	}
)

// operand is a resolved scalar source or destination: an immediate or a
// displacement from R11.
type operand struct {
	immediate bool
	bits      uint32
	disp      int32
	base      native.BaseType
}

type assembler struct {
	prog    *specialized.Program
	layout  layout
	code    []byte
	patches []int
	flags   flagState
	asserts int
	current int
}

// assemble encodes p against the given data layout. The returned code loads
// the data base address from an imm64 at each patch offset; the caller
// writes the real address there once the data region exists.
func assemble(p *specialized.Program, l layout) (code []byte, patches []int, err error) {
	a := &assembler{prog: p, layout: l}
	// movabs r11, imm64
	a.emit(0x49, 0xBB)
	a.patches = append(a.patches, len(a.code))
	a.emit(0, 0, 0, 0, 0, 0, 0, 0)

	for i, instr := range p.Instructions() {
		a.current = i
		if err := a.instruction(instr); err != nil {
			return nil, nil, err
		}
	}
	// xor eax, eax; ret
	a.emit(0x31, 0xC0, 0xC3)
	return a.code, a.patches, nil
}

func (a *assembler) instruction(instr specialized.Instruction) error {
	switch instr := instr.(type) {
	case specialized.Move:
		return a.move(instr)
	case specialized.BinaryOperation:
		return a.binaryOperation(instr)
	case specialized.Compare:
		return a.compare(instr)
	case specialized.Assert:
		return a.assert(instr)
	default:
		return a.fail(instr, "unknown instruction %T", instr)
	}
}

func (a *assembler) move(i specialized.Move) error {
	to, ok := i.To.(ir.VariableAccess)
	if !ok {
		return a.fail(i, "destination is not a variable")
	}
	base := a.prog.Variable(to.Variable).Type.Base()
	if from, ok := i.From.(ir.VariableAccess); ok && from.Length != 1 && from.Length != to.Length {
		return a.fail(i, "cannot move %d elements into %d", from.Length, to.Length)
	}
	for k := range to.Length {
		src, err := a.operand(i, i.From, k, base)
		if err != nil {
			return err
		}
		if !src.immediate && src.base != base {
			return a.fail(i, "move between %s and %s", src.base, base)
		}
		dst, err := a.operand(i, to, k, base)
		if err != nil {
			return err
		}
		a.loadGP(eax, src)
		a.storeGP(dst)
	}
	return nil
}

func (a *assembler) binaryOperation(i specialized.BinaryOperation) error {
	if i.Op.IsPacked() {
		return a.fail(i, "packed operations are not supported")
	}
	x, ok := i.X.(ir.VariableAccess)
	if !ok || x.Length != 1 {
		return a.fail(i, "result must be a single element")
	}
	base := a.prog.Variable(x.Variable).Type.Base()
	kind := i.Op.Kind
	switch {
	case kind.IsFloat() && base != native.F32:
		return a.fail(i, "%s writes %s", kind, base)
	case kind.IsInt() && base != native.I32:
		return a.fail(i, "%s writes %s", kind, base)
	case kind.IsBitwise() && base == native.F32:
		return a.fail(i, "%s on f32", kind)
	}

	srcA, err := a.operand(i, i.A, 0, base)
	if err != nil {
		return err
	}
	srcB, err := a.operand(i, i.B, 0, base)
	if err != nil {
		return err
	}
	dst, err := a.operand(i, x, 0, base)
	if err != nil {
		return err
	}

	if kind.IsFloat() {
		a.loadXMM(xmm0, srcA)
		a.loadXMM(xmm1, srcB)
		switch kind {
		case specialized.AddF:
			a.emit(0xF3, 0x0F, 0x58, 0xC1) // addss xmm0, xmm1
		case specialized.SubF:
			a.emit(0xF3, 0x0F, 0x5C, 0xC1) // subss xmm0, xmm1
		case specialized.MulF:
			a.emit(0xF3, 0x0F, 0x59, 0xC1) // mulss xmm0, xmm1
		case specialized.DivF:
			a.emit(0xF3, 0x0F, 0x5E, 0xC1) // divss xmm0, xmm1
		case specialized.ModF:
			// xmm0 - trunc(xmm0 / xmm1) * xmm1
			a.emit(0x0F, 0x28, 0xD0)       // movaps xmm2, xmm0
			a.emit(0xF3, 0x0F, 0x5E, 0xD1) // divss xmm2, xmm1
			a.emit(0xF3, 0x0F, 0x2C, 0xC2) // cvttss2si eax, xmm2
			a.emit(0xF3, 0x0F, 0x2A, 0xD0) // cvtsi2ss xmm2, eax
			a.emit(0xF3, 0x0F, 0x59, 0xD1) // mulss xmm2, xmm1
			a.emit(0xF3, 0x0F, 0x5C, 0xC2) // subss xmm0, xmm2
		}
		a.storeXMM0(dst)
		return nil
	}

	a.loadGP(eax, srcA)
	a.loadGP(ecx, srcB)
	switch kind {
	case specialized.AddI:
		a.emit(0x01, 0xC8) // add eax, ecx
	case specialized.SubI:
		a.emit(0x29, 0xC8) // sub eax, ecx
	case specialized.MulI:
		a.emit(0x0F, 0xAF, 0xC1) // imul eax, ecx
	case specialized.DivI:
		a.emit(0x99, 0xF7, 0xF9) // cdq; idiv ecx
	case specialized.ModI:
		a.emit(0x99, 0xF7, 0xF9, 0x89, 0xD0) // cdq; idiv ecx; mov eax, edx
	case specialized.BAnd:
		a.emit(0x21, 0xC8) // and eax, ecx
	case specialized.BOr:
		a.emit(0x09, 0xC8) // or eax, ecx
	case specialized.BXor:
		a.emit(0x31, 0xC8) // xor eax, ecx
	}
	a.storeGP(dst)
	return nil
}

func (a *assembler) compare(i specialized.Compare) error {
	for _, v := range []ir.Value{i.A, i.B} {
		if access, ok := v.(ir.VariableAccess); ok && access.Length != 1 {
			return a.fail(i, "compare operand %s is not a single element", access)
		}
	}
	base := a.baseOf(i.A)
	srcA, err := a.operand(i, i.A, 0, base)
	if err != nil {
		return err
	}
	srcB, err := a.operand(i, i.B, 0, base)
	if err != nil {
		return err
	}
	if !srcB.immediate && (srcB.base == native.F32) != (base == native.F32) {
		return a.fail(i, "compare between %s and %s", base, srcB.base)
	}
	if base == native.F32 {
		a.loadXMM(xmm0, srcA)
		a.loadXMM(xmm1, srcB)
		a.emit(0x0F, 0x2E, 0xC1) // ucomiss xmm0, xmm1
		a.flags = unorderedFlags
		return nil
	}
	a.loadGP(eax, srcA)
	a.loadGP(ecx, srcB)
	a.emit(0x39, 0xC8) // cmp eax, ecx
	a.flags = signedFlags
	return nil
}

func (a *assembler) assert(i specialized.Assert) error {
	var jcc byte
	switch a.flags {
	case signedFlags:
		jcc = signedJumps[i.Condition]
	case unorderedFlags:
		jcc = unorderedJumps[i.Condition]
	default:
		return a.fail(i, "assert without a preceding compare")
	}
	a.asserts++
	// jcc +6 over: mov eax, ordinal; ret
	a.emit(jcc, 0x06, 0xB8)
	a.emit32(uint32(a.asserts))
	a.emit(0xC3)
	return nil
}

// baseOf is the element kind of a scalar source.
func (a *assembler) baseOf(v ir.Value) native.BaseType {
	switch v := v.(type) {
	case ir.VariableAccess:
		return a.prog.Variable(v.Variable).Type.Base()
	case ir.Literal:
		return v.Data.Type().Base()
	}
	return native.I32
}

// operand resolves element k of v. Immediates are converted to want.
func (a *assembler) operand(instr specialized.Instruction, v ir.Value, k int, want native.BaseType) (operand, error) {
	switch v := v.(type) {
	case ir.Literal:
		bits, err := immediate(v.Data, want)
		if err != nil {
			return operand{}, a.fail(instr, "%v", err)
		}
		return operand{immediate: true, bits: bits, base: want}, nil
	case ir.VariableAccess:
		if len(v.Indexes) > 0 {
			return operand{}, a.fail(instr, "dynamic indexes are not supported")
		}
		if v.Length != 1 {
			k = v.Offset + k
		} else {
			k = v.Offset
		}
		t := a.prog.Variable(v.Variable).Type
		if k < 0 || k >= t.ElementCount() {
			return operand{}, a.fail(instr, "element %d outside %s", k, v)
		}
		disp := a.layout.Address(a.prog.Variables(), v.Variable, k)
		if disp > math.MaxInt32 {
			return operand{}, a.fail(instr, "displacement %d does not fit in 32 bits", disp)
		}
		return operand{disp: int32(disp), base: t.Base()}, nil
	default:
		return operand{}, a.fail(instr, "unknown operand %T", v)
	}
}

// immediate returns the 32-bit pattern of a literal stored as want.
func immediate(d native.Data, want native.BaseType) (uint32, error) {
	switch v := d.(type) {
	case native.Int:
		if want == native.F32 {
			return math.Float32bits(float32(v)), nil
		}
		return native.Bits(v), nil
	case native.Float:
		if want != native.F32 {
			return 0, fmt.Errorf("float literal %s used as %s", v, want)
		}
		return native.Bits(v), nil
	case native.Bool:
		return native.Bits(v), nil
	default:
		return 0, fmt.Errorf("literal %s is not a scalar", d)
	}
}

// loadGP loads a source into a 32-bit register, zero-extending bytes.
func (a *assembler) loadGP(reg byte, src operand) {
	switch {
	case src.immediate:
		a.emit(0xB8 + reg) // mov r32, imm32
		a.emit32(src.bits)
	case src.base == native.B8:
		a.emit(0x41, 0x0F, 0xB6, modrmR11(reg)) // movzx r32, byte [r11+disp32]
		a.emit32(uint32(src.disp))
	default:
		a.emit(0x41, 0x8B, modrmR11(reg)) // mov r32, [r11+disp32]
		a.emit32(uint32(src.disp))
	}
}

// storeGP stores EAX, or AL for byte slots.
func (a *assembler) storeGP(dst operand) {
	if dst.base == native.B8 {
		a.emit(0x41, 0x88, modrmR11(eax)) // mov byte [r11+disp32], al
	} else {
		a.emit(0x41, 0x89, modrmR11(eax)) // mov [r11+disp32], eax
	}
	a.emit32(uint32(dst.disp))
}

func (a *assembler) loadXMM(reg byte, src operand) {
	if src.immediate {
		a.loadGP(eax, src)
		a.emit(0x66, 0x0F, 0x6E, 0xC0|reg<<3) // movd xmm, eax
		return
	}
	a.emit(0xF3, 0x41, 0x0F, 0x10, modrmR11(reg)) // movss xmm, [r11+disp32]
	a.emit32(uint32(src.disp))
}

func (a *assembler) storeXMM0(dst operand) {
	a.emit(0xF3, 0x41, 0x0F, 0x11, modrmR11(xmm0)) // movss [r11+disp32], xmm0
	a.emit32(uint32(dst.disp))
}

// modrmR11 encodes [r11+disp32] with reg in ModRM.reg; REX.B supplies the
// high bit of r11.
func modrmR11(reg byte) byte {
	return 0x80 | reg<<3 | 0x03
}

func (a *assembler) emit(b ...byte) {
	a.code = append(a.code, b...)
}

func (a *assembler) emit32(v uint32) {
	a.code = binary.LittleEndian.AppendUint32(a.code, v)
}

func (a *assembler) fail(instr specialized.Instruction, format string, args ...any) error {
	return &AssemblyError{
		Instruction: a.current,
		Text:        instr.String(),
		Message:     fmt.Sprintf(format, args...),
	}
}
