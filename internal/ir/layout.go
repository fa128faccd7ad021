package ir

// Layout places every variable of a program in one byte buffer, in table
// order, each aligned to the width of its base type. Both backends address
// storage through it.
type Layout struct {
	Offsets []int
	Size    int
}

// NewLayout computes the layout of vars.
func NewLayout(vars []Variable) Layout {
	l := Layout{Offsets: make([]int, len(vars))}
	for i, v := range vars {
		align := v.Type.Base().Size()
		l.Size = (l.Size + align - 1) / align * align
		l.Offsets[i] = l.Size
		l.Size += v.Type.PhysicalSize()
	}
	return l
}

// Address is the byte offset of element k of variable id.
func (l Layout) Address(vars []Variable, id VariableID, k int) int {
	return l.Offsets[id] + k*vars[id].Type.Base().Size()
}
