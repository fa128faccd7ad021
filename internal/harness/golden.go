package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot renders a result as the text stored in golden files:
//
//	scenario add_scalars
//	case small: result 0
//	  in  a = 2i32
//	  in  b = 3i32
//	  out x = 5i32
//
// Only the trace is rendered; assertion failures are not part of the
// snapshot.
func Snapshot(scenarioName string, result *Result) []byte {
	var buf strings.Builder
	fmt.Fprintf(&buf, "scenario %s\n", scenarioName)
	for _, event := range result.Trace {
		fmt.Fprintf(&buf, "case %s: result %d\n", event.Case, event.Result)
		for _, in := range event.Inputs {
			fmt.Fprintf(&buf, "  in  %s = %s\n", in.Name, in.Value)
		}
		for _, out := range event.Outputs {
			fmt.Fprintf(&buf, "  out %s = %s\n", out.Name, out.Value)
		}
	}
	return []byte(buf.String())
}

// RunWithGolden executes a scenario and compares its trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns an error if the scenario cannot be executed. A trace that does not
// match the golden file fails t through goldie.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares the trace of a result that has already been
// produced against the golden file named after the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, Snapshot(scenarioName, result))
}
