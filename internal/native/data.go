package native

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/roach88/waveguide/internal/nvec"
)

// Data is a sealed interface over concrete native values.
// Only Int, Float, Bool and Array implement it.
type Data interface {
	// Type returns the native type of the value.
	Type() Type
	String() string
	nativeData()
}

// Int is a 32-bit integer value. It is held as int64 so that literals from
// earlier stages survive unchanged; encoding truncates to 32 bits.
type Int int64

// Float is a 32-bit float value held at float64 precision.
type Float float64

// Bool is a one-byte boolean value.
type Bool bool

// Array is a dense array of scalar Data with a row-major layout.
type Array struct {
	Items *nvec.NVec[Data]
}

func (Int) nativeData() {}
func (Float) nativeData() {}
func (Bool) nativeData() {}
func (Array) nativeData() {}

func (Int) Type() Type   { return IntScalar() }
func (Float) Type() Type { return FloatScalar() }
func (Bool) Type() Type  { return BoolScalar() }

// Type of an array is the base type of its first element with every
// dimension kept.
func (a Array) Type() Type {
	items := a.Items.Items()
	return ArrayType(items[0].Type().Base(), a.Items.Dims()...)
}

func (v Int) String() string { return strconv.FormatInt(int64(v), 10) + "i32" }

func (v Float) String() string {
	return strconv.FormatFloat(float64(v), 'g', -1, 32) + "f32"
}

func (v Bool) String() string {
	if v {
		return "trueb8"
	}
	return "falseb8"
}

// String prints nested brackets, e.g. [[1i32, 2i32], [3i32, 4i32]].
func (a Array) String() string {
	dims := a.Items.Dims()
	var b strings.Builder
	first := true
	for coord := range nvec.Enumerate(dims) {
		if !first {
			b.WriteString(", ")
		}
		first = false
		for i := len(coord) - 1; i >= 0 && coord[i] == 0; i-- {
			b.WriteByte('[')
		}
		b.WriteString(a.Items.Item(coord).String())
		for i := len(coord) - 1; i >= 0 && coord[i] == dims[i]-1; i-- {
			b.WriteByte(']')
		}
	}
	return b.String()
}

// NewArray builds an Array value. Panics if the items do not share one base
// type or are themselves arrays.
func NewArray(dims []int, items []Data) Array {
	if len(items) == 0 {
		panic("native: array must have at least one element")
	}
	base := items[0].Type()
	for _, item := range items {
		if !item.Type().IsScalar() || item.Type().Base() != base.Base() {
			panic(fmt.Sprintf("native: array element %s does not match %s", item, base))
		}
	}
	return Array{Items: nvec.FromSlice(dims, items)}
}

// Bits returns the 32-bit pattern of a scalar as it is stored in memory.
// Panics for arrays.
func Bits(d Data) uint32 {
	switch v := d.(type) {
	case Bool:
		if v {
			return 1
		}
		return 0
	case Int:
		return uint32(int32(v))
	case Float:
		return math.Float32bits(float32(v))
	default:
		panic(fmt.Sprintf("native: no scalar bit pattern for %T", d))
	}
}

// Encode appends the binary encoding of d to dst.
func Encode(dst []byte, d Data) []byte {
	switch v := d.(type) {
	case Bool:
		if v {
			return append(dst, 1)
		}
		return append(dst, 0)
	case Int:
		return binary.LittleEndian.AppendUint32(dst, uint32(int32(v)))
	case Float:
		return binary.LittleEndian.AppendUint32(dst, math.Float32bits(float32(v)))
	case Array:
		for _, item := range v.Items.Items() {
			dst = Encode(dst, item)
		}
		return dst
	default:
		panic(fmt.Sprintf("native: cannot encode %T", d))
	}
}

// Decode reads a value of type t from data. Proxied dimensions are decoded
// using the storage shape. Panics if len(data) is not exactly the physical
// size of t.
func Decode(t Type, data []byte) Data {
	if len(data) != t.PhysicalSize() {
		panic(fmt.Sprintf("native: %d bytes cannot hold %s (%d bytes)", len(data), t, t.PhysicalSize()))
	}
	if len(t.StorageShape()) == 0 {
		return decodeScalar(t.Base(), data)
	}
	size := t.Base().Size()
	items := make([]Data, t.ElementCount())
	for i := range items {
		items[i] = decodeScalar(t.Base(), data[i*size:(i+1)*size])
	}
	return Array{Items: nvec.FromSlice(t.StorageShape(), items)}
}

func decodeScalar(base BaseType, data []byte) Data {
	switch base {
	case B8:
		return Bool(data[0] != 0)
	case I32:
		return Int(int32(binary.LittleEndian.Uint32(data)))
	case F32:
		return Float(math.Float32frombits(binary.LittleEndian.Uint32(data)))
	default:
		panic(fmt.Sprintf("native: unknown base type %d", base))
	}
}

// RequireInt returns the integer held by d. Panics for any other kind.
func RequireInt(d Data) int64 {
	if v, ok := d.(Int); ok {
		return int64(v)
	}
	panic(fmt.Sprintf("native: required an int, got %s", d))
}

// RequireFloat returns the float held by d. Panics for any other kind.
func RequireFloat(d Data) float64 {
	if v, ok := d.(Float); ok {
		return float64(v)
	}
	panic(fmt.Sprintf("native: required a float, got %s", d))
}

// RequireBool returns the boolean held by d. Panics for any other kind.
func RequireBool(d Data) bool {
	if v, ok := d.(Bool); ok {
		return bool(v)
	}
	panic(fmt.Sprintf("native: required a bool, got %s", d))
}
