package nvec

import (
	"fmt"
	"slices"
)

// NVec is a dense row-major array with a fixed shape.
// The shape always has at least one dimension and every dimension is positive.
type NVec[T any] struct {
	dims        []int
	multipliers []int
	data        []T
}

// New builds an NVec with the given shape where every element is fill.
// Panics if dims is empty or contains a non-positive length.
func New[T any](dims []int, fill T) *NVec[T] {
	size := checkShape(dims)
	data := make([]T, size)
	for i := range data {
		data[i] = fill
	}
	return &NVec[T]{
		dims:        slices.Clone(dims),
		multipliers: multipliersFor(dims),
		data:        data,
	}
}

// FromSlice wraps items (in row-major order) with the given shape.
// Panics if len(items) does not equal the product of dims.
func FromSlice[T any](dims []int, items []T) *NVec[T] {
	size := checkShape(dims)
	if len(items) != size {
		panic(fmt.Sprintf("nvec: %d items do not fill shape %v (%d elements)", len(items), dims, size))
	}
	return &NVec[T]{
		dims:        slices.Clone(dims),
		multipliers: multipliersFor(dims),
		data:        slices.Clone(items),
	}
}

func checkShape(dims []int) int {
	if len(dims) == 0 {
		panic("nvec: shape must have at least one dimension")
	}
	size := 1
	for _, d := range dims {
		if d <= 0 {
			panic(fmt.Sprintf("nvec: invalid dimension %d in shape %v", d, dims))
		}
		size *= d
	}
	return size
}

// Multipliers returns the row-major stride of every dimension of dims,
// measured in elements.
func Multipliers(dims []int) []int {
	return multipliersFor(dims)
}

func multipliersFor(dims []int) []int {
	multipliers := make([]int, len(dims))
	m := 1
	for i := len(dims) - 1; i >= 0; i-- {
		multipliers[i] = m
		m *= dims[i]
	}
	return multipliers
}

// IsInside reports whether coord has the right arity and lies within bounds.
func (v *NVec[T]) IsInside(coord []int) bool {
	if len(coord) != len(v.dims) {
		return false
	}
	for i, c := range coord {
		if c < 0 || c >= v.dims[i] {
			return false
		}
	}
	return true
}

func (v *NVec[T]) rawIndex(coord []int) int {
	if !v.IsInside(coord) {
		panic(fmt.Sprintf("nvec: coordinate %v outside shape %v", coord, v.dims))
	}
	index := 0
	for i, c := range coord {
		index += c * v.multipliers[i]
	}
	return index
}

// Item returns the element at coord. Panics if coord is outside the shape.
func (v *NVec[T]) Item(coord []int) T {
	return v.data[v.rawIndex(coord)]
}

// ItemPtr returns a pointer to the element at coord for in-place updates.
func (v *NVec[T]) ItemPtr(coord []int) *T {
	return &v.data[v.rawIndex(coord)]
}

// Set replaces the element at coord. Panics if coord is outside the shape.
func (v *NVec[T]) Set(coord []int, value T) {
	v.data[v.rawIndex(coord)] = value
}

// Items returns every element in row-major order. The slice is shared.
func (v *NVec[T]) Items() []T {
	return v.data
}

// Dims returns a copy of the shape.
func (v *NVec[T]) Dims() []int {
	return slices.Clone(v.dims)
}

// Len is the total element count.
func (v *NVec[T]) Len() int {
	return len(v.data)
}
