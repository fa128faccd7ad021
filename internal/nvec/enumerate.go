package nvec

import (
	"fmt"
	"iter"
)

// Enumerate yields every coordinate of the shape dims with the last
// dimension advancing fastest. For dims [1,2,3] the sequence is
// [0,0,0] [0,0,1] [0,0,2] [0,1,0] [0,1,1] [0,1,2].
//
// A rank-0 shape yields a single empty coordinate. Each yielded slice is
// freshly allocated and may be retained. The sequence holds no shared
// state, so ranging over it again starts from the beginning.
//
// Panics if any dimension is not positive.
func Enumerate(dims []int) iter.Seq[[]int] {
	total := Count(dims)
	shape := append([]int(nil), dims...)
	return func(yield func([]int) bool) {
		for n := 0; n < total; n++ {
			coord := make([]int, len(shape))
			rest := n
			for i := len(shape) - 1; i >= 0; i-- {
				coord[i] = rest % shape[i]
				rest /= shape[i]
			}
			if !yield(coord) {
				return
			}
		}
	}
}

// Count returns the number of coordinates Enumerate(dims) yields.
func Count(dims []int) int {
	total := 1
	for _, d := range dims {
		if d <= 0 {
			panic(fmt.Sprintf("nvec: invalid dimension %d in shape %v", d, dims))
		}
		total *= d
	}
	return total
}
