// Package backend is the seam between the lowering pipeline and execution
// targets.
//
// A target registers a Factory under a name, usually from an init function
// in its own package. Callers pick a target by name and never depend on its
// concrete type, so new targets can be added without touching the
// specializer.
package backend

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/roach88/waveguide/internal/native"
	"github.com/roach88/waveguide/internal/specialized"
)

// Backend is a specialized program prepared for execution by one target.
type Backend interface {
	// Execute runs the program on the calling goroutine and returns the
	// target's status word. It cannot be cancelled.
	Execute() int64

	// Close releases the resources held by the backend. It is safe to call
	// more than once.
	Close() error
}

// IO is implemented by backends whose inputs and outputs can be reached by
// declared position. Positions follow the order of the program's Inputs and
// Outputs.
type IO interface {
	SetInput(pos int, d native.Data)
	ReadOutput(pos int) native.Data
	ListInputs() []native.Type
	ListOutputs() []native.Type
}

// Factory builds a Backend from a finalized specialized program. Any error is
// reported here, before anything is executed.
type Factory func(p *specialized.Program) (Backend, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register makes a factory available under name. Registering the same name
// twice panics.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if f == nil {
		panic("backend: Register factory is nil")
	}
	if _, dup := factories[name]; dup {
		panic("backend: Register called twice for " + name)
	}
	factories[name] = f
}

// New builds a backend with the factory registered under name.
func New(name string, p *specialized.Program) (Backend, error) {
	mu.RLock()
	f, ok := factories[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown backend %q (available: %v)", name, Names())
	}
	if !p.IsFinalized() {
		return nil, fmt.Errorf("backend %s: program is not finalized", name)
	}
	b, err := f(p)
	if err != nil {
		return nil, fmt.Errorf("backend %s: %w", name, err)
	}
	return b, nil
}

// Names lists registered backends in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether a backend is registered under name.
func Has(name string) bool {
	return slices.Contains(Names(), name)
}
