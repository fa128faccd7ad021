package harness

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/waveguide/internal/backend"
	"github.com/roach88/waveguide/internal/compiler"
	"github.com/roach88/waveguide/internal/jit"
	"github.com/roach88/waveguide/internal/native"
	"github.com/roach88/waveguide/internal/specialized"
)

// Harness executes the cases of one scenario against its compiled program.
type Harness struct {
	scenario *Scenario
	program  *specialized.Program
	backend  string
	inputs   []port
	outputs  []port
	logger   *slog.Logger
}

// port is a declared input or output position.
type port struct {
	name string
	typ  native.Type
}

// Run compiles the scenario's program and executes every case in order.
//
// Errors in the scenario itself (a program that does not compile or
// validate, an unknown backend, a missing or malformed input) are returned
// as an error. Mismatches between expected and actual values are collected
// in the Result instead.
func Run(scenario *Scenario) (*Result, error) {
	h, err := prepare(scenario)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	for i, c := range scenario.Cases {
		if err := h.runCase(c, result); err != nil {
			return nil, fmt.Errorf("cases[%d] %s: %w", i, c.Name, err)
		}
	}
	return result, nil
}

// prepare loads, validates and specializes the program once for all cases.
func prepare(scenario *Scenario) (*Harness, error) {
	tp, err := compiler.LoadFile(scenario.Program)
	if err != nil {
		return nil, err
	}
	if errs := compiler.Validate(tp); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, fmt.Errorf("program %s is invalid:\n  %s", scenario.Program, strings.Join(msgs, "\n  "))
	}
	sp, err := specialized.Specialize(tp)
	if err != nil {
		return nil, fmt.Errorf("program %s: %w", scenario.Program, err)
	}

	name := scenario.Backend
	if name == "" {
		name = jit.BackendName
	}
	if !backend.Has(name) {
		return nil, fmt.Errorf("unknown backend %q (available: %v)", name, backend.Names())
	}

	h := &Harness{
		scenario: scenario,
		program:  sp,
		backend:  name,
		logger:   slog.Default(),
	}
	for _, id := range sp.Inputs() {
		v := sp.Variable(id)
		h.inputs = append(h.inputs, port{name: v.Name, typ: v.Type})
	}
	for _, id := range sp.Outputs() {
		v := sp.Variable(id)
		h.outputs = append(h.outputs, port{name: v.Name, typ: v.Type})
	}
	return h, nil
}

// runCase executes one case on a fresh backend and records its trace event
// and any assertion failures.
func (h *Harness) runCase(c Case, result *Result) error {
	for _, name := range slices.Sorted(maps.Keys(c.Inputs)) {
		if !hasPort(h.inputs, name) {
			return fmt.Errorf("unknown input %q", name)
		}
	}
	for _, name := range slices.Sorted(maps.Keys(c.Expect)) {
		if !hasPort(h.outputs, name) {
			return fmt.Errorf("unknown output %q", name)
		}
	}

	b, err := backend.New(h.backend, h.program)
	if err != nil {
		return err
	}
	defer b.Close()
	rw, ok := b.(backend.IO)
	if !ok {
		return fmt.Errorf("backend %s does not expose inputs and outputs", h.backend)
	}

	event := TraceEvent{
		Case:    c.Name,
		Inputs:  make([]Binding, 0, len(h.inputs)),
		Outputs: make([]Binding, 0, len(h.outputs)),
	}
	for pos, in := range h.inputs {
		v, ok := c.Inputs[in.name]
		if !ok {
			return fmt.Errorf("missing input %q", in.name)
		}
		d, err := DataFromValue(in.typ, v)
		if err != nil {
			return fmt.Errorf("input %s: %w", in.name, err)
		}
		rw.SetInput(pos, d)
		event.Inputs = append(event.Inputs, Binding{Name: in.name, Value: d.String()})
	}

	event.Result = b.Execute()

	got := make([]native.Data, len(h.outputs))
	for pos, out := range h.outputs {
		got[pos] = rw.ReadOutput(pos)
		event.Outputs = append(event.Outputs, Binding{Name: out.name, Value: got[pos].String()})
	}
	result.AddTrace(event)

	if err := assertResult(c, event); err != nil {
		result.AddError(err.Error())
	}
	for pos, out := range h.outputs {
		raw, ok := c.Expect[out.name]
		if !ok {
			continue
		}
		want, err := DataFromValue(out.typ, raw)
		if err != nil {
			return fmt.Errorf("expect %s: %w", out.name, err)
		}
		if err := assertOutput(c, out.name, want, got[pos], h.scenario.Tolerance, event); err != nil {
			result.AddError(err.Error())
		}
	}

	h.logger.Debug("case executed",
		"scenario", h.scenario.Name,
		"case", c.Name,
		"backend", h.backend,
		"result", event.Result,
	)
	return nil
}

func hasPort(ports []port, name string) bool {
	return slices.ContainsFunc(ports, func(p port) bool { return p.name == name })
}
