package native

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// BaseType is the scalar kind of a native value.
type BaseType uint8

const (
	I32 BaseType = iota
	F32
	B8
)

// Size is the encoded width of one element in bytes.
func (b BaseType) Size() int {
	switch b {
	case I32, F32:
		return 4
	case B8:
		return 1
	default:
		panic(fmt.Sprintf("native: unknown base type %d", b))
	}
}

func (b BaseType) String() string {
	switch b {
	case I32:
		return "i32"
	case F32:
		return "f32"
	case B8:
		return "b8"
	default:
		return fmt.Sprintf("base(%d)", uint8(b))
	}
}

// ParseBaseType maps the textual names used in dumps back to a BaseType.
func ParseBaseType(s string) (BaseType, error) {
	switch s {
	case "i32", "int":
		return I32, nil
	case "f32", "float":
		return F32, nil
	case "b8", "bool":
		return B8, nil
	}
	return 0, fmt.Errorf("unknown base type %q", s)
}

// ProxyMode is the broadcast policy of one array dimension.
type ProxyMode uint8

const (
	// Keep uses the dimension as a regular index.
	Keep ProxyMode = iota
	// Discard drops the dimension; every position reads the same element.
	Discard
	// Collapse forces index 0 whatever index was requested.
	Collapse
)

// Symbol is the suffix printed after a proxied dimension in dumps.
func (m ProxyMode) Symbol() string {
	switch m {
	case Discard:
		return ">X"
	case Collapse:
		return ">1"
	default:
		return ""
	}
}

func (m ProxyMode) String() string {
	switch m {
	case Keep:
		return "keep"
	case Discard:
		return "discard"
	case Collapse:
		return "collapse"
	default:
		return fmt.Sprintf("proxy(%d)", uint8(m))
	}
}

// ParseProxyMode accepts the names produced by ProxyMode.String.
func ParseProxyMode(s string) (ProxyMode, error) {
	switch s {
	case "keep", "":
		return Keep, nil
	case "discard":
		return Discard, nil
	case "collapse":
		return Collapse, nil
	}
	return 0, fmt.Errorf("unknown proxy mode %q", s)
}

// Dim is one array dimension: its logical length and its proxy mode.
type Dim struct {
	Size  int
	Proxy ProxyMode
}

// ApplyProxy maps a coordinate over the proxied shape onto the coordinate of
// the underlying storage. Keep dimensions pass their index through, Collapse
// dimensions become 0 and Discard dimensions are dropped.
//
// Panics if coord does not have one entry per proxy dimension.
func ApplyProxy(proxy []Dim, coord []int) []int {
	if len(coord) != len(proxy) {
		panic(fmt.Sprintf("native: coordinate %v does not match %d proxied dimensions", coord, len(proxy)))
	}
	result := make([]int, 0, len(proxy))
	for i, d := range proxy {
		switch d.Proxy {
		case Keep:
			result = append(result, coord[i])
		case Collapse:
			result = append(result, 0)
		case Discard:
		}
	}
	return result
}

// Type is a base kind plus an ordered list of dimensions. A Type with no
// dimensions is a scalar.
type Type struct {
	base BaseType
	dims []Dim
}

// Scalar returns the rank-0 type of base.
func Scalar(base BaseType) Type {
	return Type{base: base}
}

// IntScalar, FloatScalar and BoolScalar are shorthands for the scalar types.
func IntScalar() Type   { return Scalar(I32) }
func FloatScalar() Type { return Scalar(F32) }
func BoolScalar() Type  { return Scalar(B8) }

// ArrayType returns a type whose dimensions all use Keep.
func ArrayType(base BaseType, sizes ...int) Type {
	dims := make([]Dim, len(sizes))
	for i, s := range sizes {
		dims[i] = Dim{Size: s, Proxy: Keep}
	}
	return ArrayTypeOf(base, dims)
}

// ArrayTypeOf returns a type with explicit per-dimension proxy modes.
// Panics on a non-positive dimension length.
func ArrayTypeOf(base BaseType, dims []Dim) Type {
	if len(dims) == 0 {
		return Type{base: base}
	}
	for _, d := range dims {
		if d.Size <= 0 {
			panic(fmt.Sprintf("native: invalid dimension length %d", d.Size))
		}
	}
	return Type{base: base, dims: slices.Clone(dims)}
}

func (t Type) Base() BaseType { return t.base }

// Dims returns a copy of the dimension list.
func (t Type) Dims() []Dim { return slices.Clone(t.dims) }

// Shape is the logical length of every dimension.
func (t Type) Shape() []int {
	shape := make([]int, len(t.dims))
	for i, d := range t.dims {
		shape[i] = d.Size
	}
	return shape
}

// StorageShape is the shape actually stored: Keep dimensions keep their
// length, Collapse dimensions occupy a single slot and Discard dimensions
// take no space.
func (t Type) StorageShape() []int {
	shape := make([]int, 0, len(t.dims))
	for _, d := range t.dims {
		switch d.Proxy {
		case Keep:
			shape = append(shape, d.Size)
		case Collapse:
			shape = append(shape, 1)
		}
	}
	return shape
}

// Resolved returns the storage type: same base, StorageShape dimensions, all
// Keep. Lowered programs only ever carry resolved types.
func (t Type) Resolved() Type {
	return ArrayType(t.base, t.StorageShape()...)
}

// IsResolved reports whether every dimension uses Keep.
func (t Type) IsResolved() bool {
	for _, d := range t.dims {
		if d.Proxy != Keep {
			return false
		}
	}
	return true
}

func (t Type) Rank() int      { return len(t.dims) }
func (t Type) IsScalar() bool { return len(t.dims) == 0 }
func (t Type) IsArray() bool  { return len(t.dims) > 0 }
func (t Type) IsInt() bool    { return t.base == I32 }
func (t Type) IsFloat() bool  { return t.base == F32 }
func (t Type) IsBool() bool   { return t.base == B8 }

// ElementCount is the number of stored elements.
func (t Type) ElementCount() int {
	n := 1
	for _, s := range t.StorageShape() {
		n *= s
	}
	return n
}

// PhysicalSize is the footprint in bytes: base width times the product of
// the stored dimensions.
func (t Type) PhysicalSize() int {
	return t.base.Size() * t.ElementCount()
}

// Unwrap drops the n leading dimensions: [2][3]i32 unwrapped once is [3]i32.
func (t Type) Unwrap(n int) Type {
	return ArrayTypeOf(t.base, t.dims[n:])
}

// Wrap adds a new leading Keep dimension of the given length.
func (t Type) Wrap(size int) Type {
	dims := append([]Dim{{Size: size, Proxy: Keep}}, t.dims...)
	return ArrayTypeOf(t.base, dims)
}

// Equal compares base and dimensions.
func (t Type) Equal(other Type) bool {
	return t.base == other.base && slices.Equal(t.dims, other.dims)
}

// String renders the type as in dumps, e.g. [2][3>X]i32.
func (t Type) String() string {
	var b strings.Builder
	for _, d := range t.dims {
		fmt.Fprintf(&b, "[%d%s]", d.Size, d.Proxy.Symbol())
	}
	b.WriteString(t.base.String())
	return b.String()
}

// ParseType parses the dump form produced by Type.String, e.g. [2>X][3]i32.
func ParseType(s string) (Type, error) {
	dims, rest, err := parseDims(s)
	if err != nil {
		return Type{}, fmt.Errorf("type %q: %w", s, err)
	}
	base, err := ParseBaseType(rest)
	if err != nil {
		return Type{}, fmt.Errorf("type %q: %w", s, err)
	}
	return ArrayTypeOf(base, dims), nil
}

// ParseDims parses a dimension list with no base type, e.g. [2>X][3>1].
func ParseDims(s string) ([]Dim, error) {
	dims, rest, err := parseDims(s)
	if err != nil {
		return nil, fmt.Errorf("dimensions %q: %w", s, err)
	}
	if rest != "" {
		return nil, fmt.Errorf("dimensions %q: trailing %q", s, rest)
	}
	return dims, nil
}

func parseDims(s string) ([]Dim, string, error) {
	rest := s
	var dims []Dim
	for strings.HasPrefix(rest, "[") {
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return nil, "", fmt.Errorf("unterminated dimension")
		}
		body := rest[1:end]
		rest = rest[end+1:]
		mode := Keep
		switch {
		case strings.HasSuffix(body, Discard.Symbol()):
			mode = Discard
			body = strings.TrimSuffix(body, Discard.Symbol())
		case strings.HasSuffix(body, Collapse.Symbol()):
			mode = Collapse
			body = strings.TrimSuffix(body, Collapse.Symbol())
		}
		size, err := strconv.Atoi(body)
		if err != nil || size <= 0 {
			return nil, "", fmt.Errorf("invalid dimension %q", body)
		}
		dims = append(dims, Dim{Size: size, Proxy: mode})
	}
	return dims, rest, nil
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
