package jit

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"runtime"
	"slices"
	"strings"

	"github.com/roach88/waveguide/internal/native"
	"github.com/roach88/waveguide/internal/specialized"
)

// Program is a specialized program loaded into executable memory.
type Program struct {
	code        *region
	data        *region
	codeLen     int
	storageSize int
	patches     []int
	inputs      []Slot
	outputs     []Slot
}

// Option configures New, Ingest and Load.
type Option func(*config)

type config struct {
	pageSize int
}

// WithPageSize overrides the page size regions are rounded to. It must be a
// positive power of two; it defaults to os.Getpagesize().
func WithPageSize(n int) Option {
	return func(c *config) {
		c.pageSize = n
	}
}

// New maps a code region of at least codeSize bytes and a data region of at
// least storageSize bytes, both filled with RET. inputs and outputs record
// where each declared position lives in the data region.
func New(codeSize, storageSize int, inputs, outputs []Slot, opts ...Option) (*Program, error) {
	cfg := config{pageSize: os.Getpagesize()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.pageSize <= 0 || cfg.pageSize&(cfg.pageSize-1) != 0 {
		return nil, fmt.Errorf("invalid page size %d", cfg.pageSize)
	}
	for _, s := range slices.Concat(inputs, outputs) {
		if s.Offset < 0 || s.Offset+s.Size() > storageSize {
			return nil, fmt.Errorf("slot %s at %d does not fit in %d bytes of storage", s.Type, s.Offset, storageSize)
		}
	}

	code, err := newRegion(codeSize, cfg.pageSize, true)
	if err != nil {
		return nil, fmt.Errorf("code region: %w", err)
	}
	data, err := newRegion(storageSize, cfg.pageSize, false)
	if err != nil {
		code.release()
		return nil, fmt.Errorf("data region: %w", err)
	}

	p := &Program{
		code:        code,
		data:        data,
		storageSize: storageSize,
		inputs:      slices.Clone(inputs),
		outputs:     slices.Clone(outputs),
	}
	runtime.AddCleanup(p, func(r [2]*region) {
		r[0].release()
		r[1].release()
	}, [2]*region{code, data})
	return p, nil
}

// Ingest assembles a finalized specialized program and loads it.
func Ingest(sp *specialized.Program, opts ...Option) (*Program, error) {
	if !sp.IsFinalized() {
		return nil, errors.New("ingest: program is not finalized")
	}
	vars := sp.Variables()
	l := newLayout(vars)
	code, patches, err := assemble(sp, l)
	if err != nil {
		return nil, err
	}

	p, err := New(len(code), l.Size, l.slots(vars, sp.Inputs()), l.slots(vars, sp.Outputs()), opts...)
	if err != nil {
		return nil, err
	}
	p.load(code, patches)

	slog.Debug("ingested program",
		"instructions", len(sp.Instructions()),
		"variables", len(vars),
		"code_bytes", len(code),
		"storage_bytes", l.Size)
	return p, nil
}

// load writes code at the start of the code region and points every patch
// at the data region.
func (p *Program) load(code []byte, patches []int) {
	p.code.write(0, code)
	var addr [8]byte
	binary.LittleEndian.PutUint64(addr[:], uint64(p.data.base()))
	for _, off := range patches {
		p.code.write(off, addr[:])
	}
	p.codeLen = len(code)
	p.patches = slices.Clone(patches)
}

// WriteCode copies raw bytes into the code region at offset. Panics if the
// bytes do not fit.
func (p *Program) WriteCode(offset int, b []byte) {
	p.code.write(offset, b)
	p.codeLen = max(p.codeLen, offset+len(b))
}

// Execute runs the code region as a function with no arguments. The result
// is 0 when every assert held, otherwise the ordinal of the failing assert.
// For code written with WriteCode it is whatever RAX held on return.
func (p *Program) Execute() int64 {
	if p.code.mem == nil {
		panic("jit: Execute on closed program")
	}
	result := call(p.code.base())
	runtime.KeepAlive(p)
	return result
}

// ExecuteRaw copies in into the input slots (concatenated in declared
// order), runs the program and copies the output slots into out. Panics
// unless len(in) and len(out) match the declared sizes exactly.
func (p *Program) ExecuteRaw(in, out []byte) int64 {
	if want := totalSize(p.inputs); len(in) != want {
		panic(fmt.Sprintf("jit: input buffer is %d bytes, program takes %d", len(in), want))
	}
	if want := totalSize(p.outputs); len(out) != want {
		panic(fmt.Sprintf("jit: output buffer is %d bytes, program produces %d", len(out), want))
	}
	for _, s := range p.inputs {
		p.data.write(s.Offset, in[:s.Size()])
		in = in[s.Size():]
	}
	result := p.Execute()
	for _, s := range p.outputs {
		copy(out, p.data.mem[s.Offset:s.Offset+s.Size()])
		out = out[s.Size():]
	}
	return result
}

// ExecuteData runs p with the fixed-size value in encoded little-endian as
// the input slots and decodes the output slots into a U. Panics if either
// type is not fixed-size or does not match the declared sizes.
func ExecuteData[T, U any](p *Program, in T) (U, int64) {
	var out U
	raw, err := binary.Append(nil, binary.LittleEndian, in)
	if err != nil {
		panic(fmt.Sprintf("jit: encode %T: %v", in, err))
	}
	size := binary.Size(out)
	if size < 0 {
		panic(fmt.Sprintf("jit: %T is not fixed-size", out))
	}
	buf := make([]byte, size)
	result := p.ExecuteRaw(raw, buf)
	if _, err := binary.Decode(buf, binary.LittleEndian, &out); err != nil {
		panic(fmt.Sprintf("jit: decode %T: %v", out, err))
	}
	return out, result
}

// SetInputI32 stores v little-endian at the slot of input position pos. The
// slot's declared type is not checked.
func (p *Program) SetInputI32(pos int, v int32) {
	p.put32(p.inputs[pos].Offset, uint32(v))
}

// SetInputF32 stores v at the slot of input position pos.
func (p *Program) SetInputF32(pos int, v float32) {
	p.put32(p.inputs[pos].Offset, math.Float32bits(v))
}

// SetInputBool stores v as one byte at the slot of input position pos.
func (p *Program) SetInputBool(pos int, v bool) {
	var b byte
	if v {
		b = 1
	}
	p.data.write(p.inputs[pos].Offset, []byte{b})
}

// ReadOutputI32 decodes the slot of output position pos as an int32. The
// slot's declared type is not checked.
func (p *Program) ReadOutputI32(pos int) int32 {
	return int32(p.get32(p.outputs[pos].Offset))
}

// ReadOutputF32 decodes the slot of output position pos as a float32.
func (p *Program) ReadOutputF32(pos int) float32 {
	return math.Float32frombits(p.get32(p.outputs[pos].Offset))
}

// ReadOutputBool decodes the slot of output position pos as a bool.
func (p *Program) ReadOutputBool(pos int) bool {
	return p.data.mem[p.outputs[pos].Offset] != 0
}

// SetInput encodes d into input position pos. Panics if d's encoding does
// not have the slot's size.
func (p *Program) SetInput(pos int, d native.Data) {
	s := p.inputs[pos]
	raw := native.Encode(nil, d)
	if len(raw) != s.Size() {
		panic(fmt.Sprintf("jit: %s does not fit input %d of type %s", d, pos, s.Type))
	}
	p.data.write(s.Offset, raw)
}

// ReadOutput decodes output position pos using its declared type.
func (p *Program) ReadOutput(pos int) native.Data {
	s := p.outputs[pos]
	return native.Decode(s.Type, p.data.mem[s.Offset:s.Offset+s.Size()])
}

func (p *Program) put32(off int, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	p.data.write(off, b[:])
}

func (p *Program) get32(off int) uint32 {
	return binary.LittleEndian.Uint32(p.data.mem[off : off+4])
}

// Inputs returns the input slots in declared order.
func (p *Program) Inputs() []Slot { return slices.Clone(p.inputs) }

// Outputs returns the output slots in declared order.
func (p *Program) Outputs() []Slot { return slices.Clone(p.outputs) }

// ListInputs returns the declared input types.
func (p *Program) ListInputs() []native.Type { return slotTypes(p.inputs) }

// ListOutputs returns the declared output types.
func (p *Program) ListOutputs() []native.Type { return slotTypes(p.outputs) }

// Close unmaps both regions. Calling it again is a no-op.
func (p *Program) Close() error {
	return errors.Join(p.code.release(), p.data.release())
}

// Artifact captures what is needed to rebuild p with Load. Patched
// addresses are zeroed so that equal programs give equal artifacts.
type Artifact struct {
	Code        []byte `json:"code"`
	Patches     []int  `json:"patches"`
	StorageSize int    `json:"storage_size"`
	Inputs      []Slot `json:"inputs"`
	Outputs     []Slot `json:"outputs"`
}

// Artifact returns a relocatable copy of the loaded code and its layout.
func (p *Program) Artifact() Artifact {
	code := slices.Clone(p.code.mem[:p.codeLen])
	for _, off := range p.patches {
		clear(code[off : off+8])
	}
	return Artifact{
		Code:        code,
		Patches:     slices.Clone(p.patches),
		StorageSize: p.storageSize,
		Inputs:      slices.Clone(p.inputs),
		Outputs:     slices.Clone(p.outputs),
	}
}

// Load maps fresh regions for a and relocates its code against them.
func Load(a Artifact, opts ...Option) (*Program, error) {
	for _, off := range a.Patches {
		if off < 0 || off+8 > len(a.Code) {
			return nil, fmt.Errorf("load: patch at %d outside %d bytes of code", off, len(a.Code))
		}
	}
	p, err := New(len(a.Code), a.StorageSize, a.Inputs, a.Outputs, opts...)
	if err != nil {
		return nil, err
	}
	p.load(a.Code, a.Patches)
	return p, nil
}

// String hex-dumps the written code and the storage, 8 bytes per line.
func (p *Program) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "code (%d bytes):\n", p.codeLen)
	dumpBytes(&b, p.code.mem[:p.codeLen])
	fmt.Fprintf(&b, "storage (%d bytes):\n", p.storageSize)
	dumpBytes(&b, p.data.mem[:p.storageSize])
	return b.String()
}

func dumpBytes(b *strings.Builder, data []byte) {
	for off := 0; off < len(data); off += 8 {
		line := data[off:min(off+8, len(data))]
		fmt.Fprintf(b, "  %04x:", off)
		for _, c := range line {
			fmt.Fprintf(b, " %02x", c)
		}
		b.WriteByte('\n')
	}
}

func totalSize(slots []Slot) int {
	n := 0
	for _, s := range slots {
		n += s.Size()
	}
	return n
}

func slotTypes(slots []Slot) []native.Type {
	types := make([]native.Type, len(slots))
	for i, s := range slots {
		types[i] = s.Type
	}
	return types
}
