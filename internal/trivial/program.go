package trivial

import (
	"fmt"

	"github.com/roach88/waveguide/internal/ir"
	"github.com/roach88/waveguide/internal/native"
)

// Program is a trivial program: an ir.Program over trivial instructions plus
// a label counter.
type Program struct {
	*ir.Program[Instruction]
	labels int
}

// NewProgram creates an empty trivial program.
func NewProgram() *Program {
	return &Program{Program: ir.NewProgram[Instruction]()}
}

// NewVariable adopts a variable of type t. name may be empty.
func (p *Program) NewVariable(t native.Type, name string) ir.VariableID {
	return p.AdoptVariable(ir.Variable{Type: t, Name: name})
}

// CreateLabel reserves a fresh label.
func (p *Program) CreateLabel() LabelID {
	id := LabelID(p.labels)
	p.labels++
	return id
}

// LabelCount returns how many labels have been created.
func (p *Program) LabelCount() int { return p.labels }

func (p *Program) String() string {
	return p.Program.String() + fmt.Sprintf("labels: %d\n", p.labels)
}
