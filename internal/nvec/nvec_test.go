package nvec

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFillsEveryElement(t *testing.T) {
	v := New([]int{2, 3}, 7)

	assert.Equal(t, 6, v.Len())
	assert.Equal(t, []int{2, 3}, v.Dims())
	for _, item := range v.Items() {
		assert.Equal(t, 7, item)
	}
}

func TestSetAndItemUseRowMajorOffsets(t *testing.T) {
	v := New([]int{2, 3}, 0)
	v.Set([]int{1, 2}, 42)
	v.Set([]int{0, 1}, 9)

	assert.Equal(t, 42, v.Item([]int{1, 2}))
	assert.Equal(t, 42, v.Items()[5])
	assert.Equal(t, 9, v.Items()[1])

	*v.ItemPtr([]int{1, 0}) = 5
	assert.Equal(t, 5, v.Items()[3])
}

func TestIsInside(t *testing.T) {
	v := New([]int{2, 3}, false)

	tests := []struct {
		name  string
		coord []int
		want  bool
	}{
		{"origin", []int{0, 0}, true},
		{"last", []int{1, 2}, true},
		{"row out of range", []int{2, 0}, false},
		{"column out of range", []int{0, 3}, false},
		{"negative", []int{-1, 0}, false},
		{"too few axes", []int{0}, false},
		{"too many axes", []int{0, 0, 0}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.IsInside(tt.coord))
		})
	}
}

func TestOutOfRangeAccessPanics(t *testing.T) {
	v := New([]int{2, 2}, 0)

	assert.Panics(t, func() { v.Item([]int{2, 0}) })
	assert.Panics(t, func() { v.Set([]int{0, 0, 0}, 1) })
}

func TestMalformedShapePanics(t *testing.T) {
	assert.Panics(t, func() { New([]int{}, 0) })
	assert.Panics(t, func() { New([]int{2, 0}, 0) })
	assert.Panics(t, func() { FromSlice([]int{2, 2}, []int{1, 2, 3}) })
}

func TestFromSliceKeepsOrder(t *testing.T) {
	v := FromSlice([]int{2, 2}, []string{"a", "b", "c", "d"})

	assert.Equal(t, "b", v.Item([]int{0, 1}))
	assert.Equal(t, "c", v.Item([]int{1, 0}))
}

func TestMultipliers(t *testing.T) {
	assert.Equal(t, []int{12, 4, 1}, Multipliers([]int{2, 3, 4}))
	assert.Equal(t, []int{1}, Multipliers([]int{5}))
}

func TestEnumerateOrder(t *testing.T) {
	got := slices.Collect(Enumerate([]int{1, 2, 3}))

	want := [][]int{
		{0, 0, 0}, {0, 0, 1}, {0, 0, 2},
		{0, 1, 0}, {0, 1, 1}, {0, 1, 2},
	}
	assert.Equal(t, want, got)
}

func TestEnumerateIsRestartable(t *testing.T) {
	seq := Enumerate([]int{2, 2})

	first := slices.Collect(seq)
	second := slices.Collect(seq)
	require.Len(t, first, 4)
	assert.Equal(t, first, second)
}

func TestEnumerateStopsEarly(t *testing.T) {
	var seen [][]int
	for coord := range Enumerate([]int{3, 3}) {
		seen = append(seen, coord)
		if len(seen) == 2 {
			break
		}
	}
	assert.Equal(t, [][]int{{0, 0}, {0, 1}}, seen)
}

func TestEnumerateScalarShape(t *testing.T) {
	got := slices.Collect(Enumerate(nil))

	assert.Equal(t, [][]int{{}}, got)
}

func TestEnumerateMatchesContainerOrder(t *testing.T) {
	dims := []int{2, 3, 2}
	v := New(dims, 0)
	i := 0
	for coord := range Enumerate(dims) {
		v.Set(coord, i)
		i++
	}
	for idx, item := range v.Items() {
		assert.Equal(t, idx, item)
	}
}

func TestEnumerateRejectsZeroLengthDimension(t *testing.T) {
	assert.Panics(t, func() { Enumerate([]int{2, 0}) })
}
