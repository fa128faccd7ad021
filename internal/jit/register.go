package jit

import (
	"github.com/roach88/waveguide/internal/backend"
	"github.com/roach88/waveguide/internal/specialized"
)

// BackendName is the name the native backend registers under.
const BackendName = "native"

var (
	_ backend.Backend = (*Program)(nil)
	_ backend.IO      = (*Program)(nil)
)

func init() {
	backend.Register(BackendName, func(p *specialized.Program) (backend.Backend, error) {
		prog, err := Ingest(p)
		if err != nil {
			return nil, err
		}
		return prog, nil
	})
}
