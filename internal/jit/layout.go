package jit

import (
	"github.com/roach88/waveguide/internal/ir"
	"github.com/roach88/waveguide/internal/native"
)

// Slot is the location of one declared input or output inside the data
// region.
type Slot struct {
	Offset int         `json:"offset"`
	Type   native.Type `json:"type"`
}

// Size is the number of bytes the slot occupies.
func (s Slot) Size() int { return s.Type.PhysicalSize() }

// layout is the data region layout shared with the other backends.
type layout struct {
	ir.Layout
}

func newLayout(vars []ir.Variable) layout {
	return layout{ir.NewLayout(vars)}
}

func (l layout) slots(vars []ir.Variable, ids []ir.VariableID) []Slot {
	slots := make([]Slot, len(ids))
	for i, id := range ids {
		slots[i] = Slot{Offset: l.Offsets[id], Type: vars[id].Type}
	}
	return slots
}
