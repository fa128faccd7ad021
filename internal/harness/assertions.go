package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/waveguide/internal/native"
)

// AssertionError is returned when a case does not produce what it expects.
type AssertionError struct {
	Case     string     // case name
	Target   string     // "result" or "output <name>"
	Expected string     // human-readable expected outcome
	Actual   string     // human-readable actual outcome
	Event    TraceEvent // the executed case, for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: case %s, %s\n", e.Case, e.Target)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Event.Inputs) > 0 {
		fmt.Fprintf(&buf, "\nInputs:\n")
		for _, in := range e.Event.Inputs {
			fmt.Fprintf(&buf, "  %s = %s\n", in.Name, in.Value)
		}
	}
	return buf.String()
}

// assertResult checks the status word returned by Execute.
func assertResult(c Case, event TraceEvent) error {
	if event.Result == c.Result {
		return nil
	}
	return &AssertionError{
		Case:     c.Name,
		Target:   "result",
		Expected: describeResult(c.Result),
		Actual:   describeResult(event.Result),
		Event:    event,
	}
}

// assertOutput compares one expected output against what was read back.
func assertOutput(c Case, name string, want, got native.Data, tolerance float64, event TraceEvent) error {
	if EqualData(want, got, tolerance) {
		return nil
	}
	return &AssertionError{
		Case:     c.Name,
		Target:   "output " + name,
		Expected: want.String(),
		Actual:   got.String(),
		Event:    event,
	}
}

func describeResult(r int64) string {
	if r == 0 {
		return "0 (all asserts held)"
	}
	return fmt.Sprintf("%d (assert #%d failed)", r, r)
}
