package harness

import (
	"fmt"
	"math"

	"github.com/roach88/waveguide/internal/native"
)

// DataFromValue converts a decoded YAML value into native data of type t.
// Arrays are built over the storage shape of t and are given as nested
// lists, outermost dimension first. A scalar given for an array type fills
// every element.
func DataFromValue(t native.Type, v any) (native.Data, error) {
	shape := t.StorageShape()
	if len(shape) == 0 {
		return scalarFromValue(t.Base(), v)
	}
	if _, isList := v.([]any); !isList {
		d, err := scalarFromValue(t.Base(), v)
		if err != nil {
			return nil, err
		}
		items := make([]native.Data, t.ElementCount())
		for i := range items {
			items[i] = d
		}
		return native.NewArray(shape, items), nil
	}

	items := make([]native.Data, 0, t.ElementCount())
	if err := collect(t.Base(), shape, v, &items); err != nil {
		return nil, err
	}
	return native.NewArray(shape, items), nil
}

func collect(base native.BaseType, shape []int, v any, items *[]native.Data) error {
	if len(shape) == 0 {
		d, err := scalarFromValue(base, v)
		if err != nil {
			return err
		}
		*items = append(*items, d)
		return nil
	}
	list, ok := v.([]any)
	if !ok {
		return fmt.Errorf("expected a list of %d elements, got %v", shape[0], v)
	}
	if len(list) != shape[0] {
		return fmt.Errorf("expected %d elements, got %d", shape[0], len(list))
	}
	for i, elem := range list {
		if err := collect(base, shape[1:], elem, items); err != nil {
			return fmt.Errorf("[%d]: %w", i, err)
		}
	}
	return nil
}

func scalarFromValue(base native.BaseType, v any) (native.Data, error) {
	switch base {
	case native.I32:
		switch n := v.(type) {
		case int:
			return intInRange(int64(n))
		case int64:
			return intInRange(n)
		case uint64:
			if n <= math.MaxInt32 {
				return native.Int(n), nil
			}
		}
	case native.F32:
		switch n := v.(type) {
		case float64:
			return native.Float(n), nil
		case int:
			return native.Float(float64(n)), nil
		case int64:
			return native.Float(float64(n)), nil
		}
	case native.B8:
		if b, ok := v.(bool); ok {
			return native.Bool(b), nil
		}
	}
	return nil, fmt.Errorf("cannot use %v (%T) as %s", v, v, base)
}

func intInRange(n int64) (native.Data, error) {
	if n < math.MinInt32 || n > math.MaxInt32 {
		return nil, fmt.Errorf("%d is out of i32 range", n)
	}
	return native.Int(n), nil
}

// EqualData reports whether got matches want. Both must have the same type.
// Floats are rounded to f32 first and match when they differ by at most
// tolerance or are both NaN.
func EqualData(want, got native.Data, tolerance float64) bool {
	if !want.Type().Equal(got.Type()) {
		return false
	}
	switch w := want.(type) {
	case native.Array:
		g := got.(native.Array)
		gotItems := g.Items.Items()
		for i, item := range w.Items.Items() {
			if !EqualData(item, gotItems[i], tolerance) {
				return false
			}
		}
		return true
	case native.Float:
		a := float64(float32(w))
		b := float64(float32(got.(native.Float)))
		if math.IsNaN(a) || math.IsNaN(b) {
			return math.IsNaN(a) && math.IsNaN(b)
		}
		return math.Abs(a-b) <= tolerance
	default:
		return want == got
	}
}
