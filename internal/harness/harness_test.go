package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/waveguide/internal/backend"
	"github.com/roach88/waveguide/internal/native"
	"github.com/roach88/waveguide/internal/specialized"
)

const (
	echoBackend   = "harness-echo"
	opaqueBackend = "harness-opaque"
)

// echo copies input position i to output position i when the types agree
// and leaves every other output zeroed. It runs on any platform.
type echo struct {
	inputs  []native.Type
	outputs []native.Type
	values  []native.Data
	status  int64
}

func (e *echo) Execute() int64 { return e.status }
func (*echo) Close() error     { return nil }

func (e *echo) SetInput(pos int, d native.Data) { e.values[pos] = d }

func (e *echo) ReadOutput(pos int) native.Data {
	t := e.outputs[pos]
	if pos < len(e.values) && e.values[pos] != nil && e.values[pos].Type().Equal(t) {
		return e.values[pos]
	}
	return native.Decode(t, make([]byte, t.PhysicalSize()))
}

func (e *echo) ListInputs() []native.Type  { return e.inputs }
func (e *echo) ListOutputs() []native.Type { return e.outputs }

type opaque struct{}

func (opaque) Execute() int64 { return 0 }
func (opaque) Close() error   { return nil }

func init() {
	backend.Register(echoBackend, func(p *specialized.Program) (backend.Backend, error) {
		e := &echo{}
		for _, id := range p.Inputs() {
			e.inputs = append(e.inputs, p.Variable(id).Type)
		}
		for _, id := range p.Outputs() {
			e.outputs = append(e.outputs, p.Variable(id).Type)
		}
		e.values = make([]native.Data, len(e.inputs))
		return e, nil
	})
	backend.Register(opaqueBackend, func(*specialized.Program) (backend.Backend, error) {
		return opaque{}, nil
	})
}

func copyScenario(cases ...Case) *Scenario {
	return &Scenario{
		Name:        "copy",
		Description: "Moves inputs to outputs",
		Program:     "testdata/programs/copy.cue",
		Backend:     echoBackend,
		Cases:       cases,
	}
}

func TestRun_Passing(t *testing.T) {
	scenario := copyScenario(
		Case{
			Name:   "first",
			Inputs: map[string]any{"a": 4, "b": 0.25},
			Expect: map[string]any{"x": 4, "y": 0.25},
		},
		Case{
			Name:   "second",
			Inputs: map[string]any{"a": -1, "b": 2},
			Expect: map[string]any{"y": 2},
		},
	)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass)
	assert.Empty(t, result.Errors)

	require.Len(t, result.Trace, 2)
	assert.Equal(t, TraceEvent{
		Case:    "first",
		Inputs:  []Binding{{"a", "4i32"}, {"b", "0.25f32"}},
		Outputs: []Binding{{"x", "4i32"}, {"y", "0.25f32"}},
		Result:  0,
	}, result.Trace[0])
	assert.Equal(t, "second", result.Trace[1].Case)
	assert.Equal(t, []Binding{{"x", "-1i32"}, {"y", "2f32"}}, result.Trace[1].Outputs)
}

func TestRun_OutputMismatch(t *testing.T) {
	scenario := copyScenario(Case{
		Name:   "wrong",
		Inputs: map[string]any{"a": 4, "b": 1},
		Expect: map[string]any{"x": 5, "y": 1},
	})

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Assertion failed: case wrong, output x")
	assert.Contains(t, result.Errors[0], "Expected: 5i32")
	assert.Contains(t, result.Errors[0], "Actual: 4i32")
	assert.Contains(t, result.Errors[0], "a = 4i32")

	// the trace is still recorded
	require.Len(t, result.Trace, 1)
}

func TestRun_Tolerance(t *testing.T) {
	scenario := copyScenario(Case{
		Name:   "close",
		Inputs: map[string]any{"a": 0, "b": 1.0004},
		Expect: map[string]any{"y": 1},
	})

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)

	scenario.Tolerance = 0.001
	result, err = Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_ResultMismatch(t *testing.T) {
	scenario := copyScenario(Case{
		Name:   "expects failure",
		Inputs: map[string]any{"a": 0, "b": 0},
		Result: 2,
	})

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "case expects failure, result")
	assert.Contains(t, result.Errors[0], "Expected: 2 (assert #2 failed)")
	assert.Contains(t, result.Errors[0], "Actual: 0 (all asserts held)")
}

func TestRun_ScenarioErrors(t *testing.T) {
	tests := []struct {
		name    string
		c       Case
		wantErr string
	}{
		{
			name:    "missing input",
			c:       Case{Name: "c", Inputs: map[string]any{"a": 1}},
			wantErr: `missing input "b"`,
		},
		{
			name:    "unknown input",
			c:       Case{Name: "c", Inputs: map[string]any{"a": 1, "b": 1, "z": 1}},
			wantErr: `unknown input "z"`,
		},
		{
			name:    "unknown output",
			c:       Case{Name: "c", Inputs: map[string]any{"a": 1, "b": 1}, Expect: map[string]any{"q": 1}},
			wantErr: `unknown output "q"`,
		},
		{
			name:    "bad input value",
			c:       Case{Name: "c", Inputs: map[string]any{"a": true, "b": 1}},
			wantErr: "input a: cannot use true",
		},
		{
			name:    "bad expected value",
			c:       Case{Name: "c", Inputs: map[string]any{"a": 1, "b": 1}, Expect: map[string]any{"x": "one"}},
			wantErr: "expect x: cannot use one",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(copyScenario(tt.c))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "cases[0] c")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRun_UnknownBackend(t *testing.T) {
	scenario := copyScenario(Case{Name: "c", Inputs: map[string]any{"a": 1, "b": 1}})
	scenario.Backend = "no-such-backend"

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown backend "no-such-backend"`)
}

func TestRun_BackendWithoutIO(t *testing.T) {
	scenario := copyScenario(Case{Name: "c", Inputs: map[string]any{"a": 1, "b": 1}})
	scenario.Backend = opaqueBackend

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not expose inputs and outputs")
}

func TestRun_InvalidProgram(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.cue")
	src := `variables: {
	a: "i32"
	f: "f32"
}
inputs: ["a"]
outputs: ["f"]
instructions: [
	{op: "addf", a: "a", b: "a", x: "f"},
]
`
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))

	scenario := copyScenario(Case{Name: "c", Inputs: map[string]any{"a": 1}})
	scenario.Program = path

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is invalid")
	assert.Contains(t, err.Error(), "[E101]")
}

func TestRun_UnloweredProgram(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "loop.cue")
	src := `variables: n: "i32"
inputs: ["n"]
outputs: ["n"]
instructions: [
	{op: "labl", label: "top"},
	{op: "subi", a: "n", b: 1, x: "n"},
	{op: "comp", a: "n", b: 0},
	{op: "jump", label: "top", cond: "gt"},
]
`
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))

	scenario := copyScenario(Case{Name: "c", Inputs: map[string]any{"n": 3}})
	scenario.Program = path

	_, err := Run(scenario)
	require.Error(t, err)
	assert.True(t, specialized.IsLoweringError(err), "got %v", err)
}

func TestSnapshot(t *testing.T) {
	result := NewResult()
	result.AddTrace(TraceEvent{
		Case:    "one",
		Inputs:  []Binding{{"a", "1i32"}},
		Outputs: []Binding{{"x", "2i32"}},
		Result:  0,
	})
	result.AddTrace(TraceEvent{Case: "two", Result: 3})

	want := "scenario demo\n" +
		"case one: result 0\n" +
		"  in  a = 1i32\n" +
		"  out x = 2i32\n" +
		"case two: result 3\n"
	assert.Equal(t, want, string(Snapshot("demo", result)))
}
