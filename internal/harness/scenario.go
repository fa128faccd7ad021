package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a set of cases run against one program.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario checks.
	Description string `yaml:"description"`

	// Program is the path of the CUE program to compile.
	Program string `yaml:"program"`

	// Backend selects the execution target. Empty means the native backend.
	Backend string `yaml:"backend,omitempty"`

	// Tolerance is the largest absolute difference at which two floats still
	// compare equal.
	Tolerance float64 `yaml:"tolerance,omitempty"`

	// Cases run in order, each on a fresh backend.
	Cases []Case `yaml:"cases"`
}

// Case is one execution of the program.
type Case struct {
	// Name identifies the case within its scenario.
	Name string `yaml:"name"`

	// Inputs gives a value for every program input, keyed by variable name.
	Inputs map[string]any `yaml:"inputs"`

	// Expect lists output values to compare. Subset match.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Result is the status word Execute must return.
	Result int64 `yaml:"result,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file. The program path is
// resolved against the directory holding the file.
// Returns an error if the file doesn't exist, is malformed, contains unknown
// fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file, resolving
// a relative program path against basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "case:" vs "cases:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Program != "" && !filepath.IsAbs(scenario.Program) && basePath != "" {
		scenario.Program = filepath.Join(basePath, scenario.Program)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Program == "" {
		return fmt.Errorf("program is required")
	}
	if _, err := os.Stat(s.Program); os.IsNotExist(err) {
		return fmt.Errorf("program file not found: %s", s.Program)
	}
	if s.Tolerance < 0 {
		return fmt.Errorf("tolerance must be non-negative")
	}
	if len(s.Cases) == 0 {
		return fmt.Errorf("cases list is required and must be non-empty")
	}

	seen := make(map[string]int, len(s.Cases))
	for i, c := range s.Cases {
		if c.Name == "" {
			return fmt.Errorf("cases[%d]: name is required", i)
		}
		if prev, dup := seen[c.Name]; dup {
			return fmt.Errorf("cases[%d]: name %q already used by cases[%d]", i, c.Name, prev)
		}
		seen[c.Name] = i
		if c.Result < 0 {
			return fmt.Errorf("cases[%d]: result must be non-negative", i)
		}
	}
	return nil
}
