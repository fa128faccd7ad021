package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/waveguide/internal/backend"
	"github.com/roach88/waveguide/internal/harness"
	"github.com/roach88/waveguide/internal/jit"
	"github.com/roach88/waveguide/internal/native"
	"github.com/roach88/waveguide/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Inputs    string  // YAML file mapping input names to values
	Expect    string  // YAML file with expected result and outputs
	Backend   string  // registered backend name
	Tolerance float64 // absolute tolerance for f32 outputs
}

// RunResult describes one execution of a program.
type RunResult struct {
	Hash       string            `json:"hash"`
	Backend    string            `json:"backend"`
	Cached     bool              `json:"cached"` // code came from the artifact cache
	Result     int64             `json:"result"`
	Outputs    []harness.Binding `json:"outputs"`
	Mismatches []string          `json:"mismatches,omitempty"`
	RunID      string            `json:"run_id,omitempty"` // set when the run was logged
}

var errArtifactCache = errors.New("artifact cache")

// expectFile is the format of the --expect file.
type expectFile struct {
	Result  *int64         `yaml:"result"`
	Outputs map[string]any `yaml:"outputs"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <program.cue>",
		Short: "Compile and execute a program",
		Long: `Compile, specialize and execute a CUE program on a backend.

Inputs are read from a YAML mapping of input names to values. A scalar is
written as a number or boolean and an array as nested lists; a scalar given
for an array input fills every element.

The result is 0 when every assert held, otherwise the 1-based ordinal of the
first assert that failed. With --expect, the result and outputs are compared
against the file and any difference fails the command:

  result: 0
  outputs:
    x: [1, 2, 3]

With --cache, native code is stored by program hash and reused on later runs,
and every run is logged.

Exit codes:
  0 - Program ran and matched expectations (or, without --expect, every assert held)
  1 - Result or outputs did not match
  2 - Command error (invalid paths, malformed values, etc.)

Examples:
  waveguide run prog.cue --inputs in.yaml
  waveguide run prog.cue --inputs in.yaml --expect out.yaml --tolerance 1e-6
  waveguide run prog.cue --inputs in.yaml --cache ./waveguide.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProgram(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Inputs, "inputs", "", "YAML file with input values")
	cmd.Flags().StringVar(&opts.Expect, "expect", "", "YAML file with the expected result and outputs")
	cmd.Flags().StringVar(&opts.Backend, "backend", jit.BackendName, "backend to execute on")
	cmd.Flags().Float64Var(&opts.Tolerance, "tolerance", 0, "absolute tolerance for f32 outputs")

	return cmd
}

func runProgram(ctx context.Context, opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if opts.Tolerance < 0 {
		return formatter.Fail(ExitCommandError, ErrCodeBadValues, "tolerance must be non-negative")
	}
	if !backend.Has(opts.Backend) {
		return formatter.Fail(ExitCommandError, ErrCodeBackend,
			fmt.Sprintf("unknown backend %q (available: %v)", opts.Backend, backend.Names()))
	}

	loaded, err := LoadProgram(path, LoadModeSpecialize)
	if err != nil {
		return loadFailure(formatter, err)
	}
	sp := loaded.Specialized

	inputs, err := readInputs(opts.Inputs)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeBadValues, err.Error())
	}
	var expect *expectFile
	if opts.Expect != "" {
		if expect, err = readExpect(opts.Expect); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeBadValues, err.Error())
		}
	}

	inNames := make([]string, 0, len(sp.Inputs()))
	inData := make([]native.Data, 0, len(sp.Inputs()))
	for _, id := range sp.Inputs() {
		v := sp.Variable(id)
		raw, ok := inputs[v.Name]
		if !ok {
			return formatter.Fail(ExitCommandError, ErrCodeBadValues, fmt.Sprintf("missing input %q", v.Name))
		}
		d, err := harness.DataFromValue(v.Type, raw)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeBadValues, fmt.Sprintf("input %s: %v", v.Name, err))
		}
		inNames = append(inNames, v.Name)
		inData = append(inData, d)
	}
	for _, name := range slices.Sorted(maps.Keys(inputs)) {
		if !slices.Contains(inNames, name) {
			return formatter.Fail(ExitCommandError, ErrCodeBadValues, fmt.Sprintf("unknown input %q", name))
		}
	}

	var cache *store.Store
	if opts.Cache != "" {
		if cache, err = store.Open(opts.Cache); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeCacheFailed, err.Error())
		}
		defer cache.Close()
	}

	b, cached, err := buildBackend(ctx, cache, opts.Backend, loaded)
	if err != nil {
		code := ErrCodeBackend
		if errors.Is(err, errArtifactCache) {
			code = ErrCodeCacheFailed
		}
		return formatter.Fail(ExitCommandError, code, err.Error())
	}
	defer b.Close()
	rw, ok := b.(backend.IO)
	if !ok {
		return formatter.Fail(ExitCommandError, ErrCodeBackend,
			fmt.Sprintf("backend %s does not expose inputs and outputs", opts.Backend))
	}
	slog.Debug("executing program", "path", path, "backend", opts.Backend, "hash", loaded.Hash, "cached", cached)

	for pos, d := range inData {
		rw.SetInput(pos, d)
	}
	result := RunResult{
		Hash:    loaded.Hash,
		Backend: opts.Backend,
		Cached:  cached,
		Result:  b.Execute(),
		Outputs: make([]harness.Binding, 0, len(sp.Outputs())),
	}
	got := make(map[string]native.Data, len(sp.Outputs()))
	for pos, id := range sp.Outputs() {
		name := sp.Variable(id).Name
		got[name] = rw.ReadOutput(pos)
		result.Outputs = append(result.Outputs, harness.Binding{Name: name, Value: got[name].String()})
	}

	if expect != nil {
		result.Mismatches, err = compareExpect(expect, result.Result, got, opts.Tolerance)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeBadValues, err.Error())
		}
	}

	if cache != nil {
		run, err := cache.RecordRun(ctx, store.Run{
			ProgramHash: loaded.Hash,
			Source:      path,
			Result:      result.Result,
			Inputs:      bindingMap(inNames, inData),
			Outputs:     formatOutputs(result.Outputs),
		})
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeCacheFailed, err.Error())
		}
		result.RunID = run.ID
	}

	slog.Debug("program executed",
		"program", path,
		"hash", loaded.Hash,
		"backend", opts.Backend,
		"result", result.Result,
	)
	return outputRun(formatter, result, expect == nil)
}

// buildBackend instantiates the named backend for the loaded program. For
// the native backend with a cache, code is reused by program hash and newly
// assembled code is stored.
func buildBackend(ctx context.Context, cache *store.Store, name string, loaded *LoadResult) (backend.Backend, bool, error) {
	if cache == nil || name != jit.BackendName {
		b, err := backend.New(name, loaded.Specialized)
		return b, false, err
	}

	a, ok, err := cache.GetArtifact(ctx, loaded.Hash)
	if err != nil {
		return nil, false, fmt.Errorf("%w: read: %v", errArtifactCache, err)
	}
	if ok {
		prog, err := jit.Load(a)
		if err != nil {
			return nil, false, err
		}
		return prog, true, nil
	}

	prog, err := jit.Ingest(loaded.Specialized)
	if err != nil {
		return nil, false, err
	}
	if err := cache.PutArtifact(ctx, loaded.Hash, name, prog.Artifact()); err != nil {
		prog.Close()
		return nil, false, fmt.Errorf("%w: write: %v", errArtifactCache, err)
	}
	return prog, false, nil
}

// compareExpect lists every difference between the expectations and the
// executed result. Outputs absent from the file are not checked.
func compareExpect(expect *expectFile, status int64, got map[string]native.Data, tolerance float64) ([]string, error) {
	var mismatches []string
	if expect.Result != nil && *expect.Result != status {
		mismatches = append(mismatches, fmt.Sprintf("result: expected %d, got %d", *expect.Result, status))
	}
	for _, name := range slices.Sorted(maps.Keys(expect.Outputs)) {
		actual, ok := got[name]
		if !ok {
			return nil, fmt.Errorf("unknown output %q", name)
		}
		want, err := harness.DataFromValue(actual.Type(), expect.Outputs[name])
		if err != nil {
			return nil, fmt.Errorf("expect %s: %w", name, err)
		}
		if !harness.EqualData(want, actual, tolerance) {
			mismatches = append(mismatches, fmt.Sprintf("output %s: expected %s, got %s", name, want, actual))
		}
	}
	return mismatches, nil
}

func outputRun(formatter *OutputFormatter, result RunResult, noExpect bool) error {
	var code, message string
	switch {
	case len(result.Mismatches) > 0:
		code, message = ErrCodeMismatch, fmt.Sprintf("%d expectation(s) not met", len(result.Mismatches))
	case noExpect && result.Result != 0:
		code, message = ErrCodeAssertFail, fmt.Sprintf("assert #%d failed", result.Result)
	}

	if formatter.JSON() {
		if code == "" {
			return formatter.Success(result)
		}
		return formatter.Reject(result, code, message)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "result %d\n", result.Result)
	for _, out := range result.Outputs {
		fmt.Fprintf(w, "%s = %s\n", out.Name, out.Value)
	}
	if code == "" {
		return nil
	}
	fmt.Fprintf(w, "✗ %s\n", message)
	for _, m := range result.Mismatches {
		fmt.Fprintf(w, "  %s\n", m)
	}
	return formatter.Reject(result, code, message)
}

func bindingMap(names []string, data []native.Data) map[string]string {
	m := make(map[string]string, len(names))
	for i, name := range names {
		m[name] = data[i].String()
	}
	return m
}

func formatOutputs(outputs []harness.Binding) map[string]string {
	m := make(map[string]string, len(outputs))
	for _, b := range outputs {
		m[b.Name] = b.Value
	}
	return m
}

// readInputs decodes the --inputs file. No file means no inputs.
func readInputs(path string) (map[string]any, error) {
	inputs := map[string]any{}
	if path == "" {
		return inputs, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read inputs file: %w", err)
	}
	if err := yaml.Unmarshal(data, &inputs); err != nil {
		return nil, fmt.Errorf("failed to parse inputs YAML: %w", err)
	}
	if inputs == nil {
		inputs = map[string]any{}
	}
	return inputs, nil
}

// readExpect decodes the --expect file, rejecting unknown fields.
func readExpect(path string) (*expectFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read expect file: %w", err)
	}
	var expect expectFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&expect); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse expect YAML: %w", err)
	}
	if expect.Result != nil && *expect.Result < 0 {
		return nil, fmt.Errorf("expected result must be non-negative")
	}
	return &expect, nil
}
