package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const copySnapshot = `scenario copy
case first: result 0
  in  a = 4i32
  in  b = 0.25f32
  out x = 4i32
  out y = 0.25f32
`

// writeCopyScenario writes a scenario running testdata/copy.cue on the echo
// backend and returns its path.
func writeCopyScenario(t *testing.T, dir, file string, expectX int) string {
	t.Helper()
	program, err := filepath.Abs("testdata/copy.cue")
	require.NoError(t, err)

	content := fmt.Sprintf(`name: copy
description: Moves inputs to outputs
program: %s
backend: %s
cases:
  - name: first
    inputs: {a: 4, b: 0.25}
    expect: {x: %d, y: 0.25}
`, program, echoBackend, expectX)
	return writeFile(t, dir, file, content)
}

func runTestCmd(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestTestCommandPasses(t *testing.T) {
	dir := t.TempDir()
	writeCopyScenario(t, dir, "copy.yaml", 4)

	output, err := runTestCmd(t, "text", dir)
	require.NoError(t, err)
	assert.Contains(t, output, "✓ copy\n")
	assert.Contains(t, output, "Test Summary: 1 passed, 0 failed, 1 total")
	assert.Contains(t, output, "✓ All scenarios passed")
}

func TestTestCommandFails(t *testing.T) {
	dir := t.TempDir()
	writeCopyScenario(t, dir, "copy.yaml", 5)

	output, err := runTestCmd(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, output, "✗ copy\n")
	assert.Contains(t, output, "Expected: 5i32")
	assert.Contains(t, output, "Test Summary: 0 passed, 1 failed, 1 total")
}

func TestTestCommandJSON(t *testing.T) {
	dir := t.TempDir()
	writeCopyScenario(t, dir, "good.yaml", 4)
	writeCopyScenario(t, dir, "bad.yaml", 5)

	output, err := runTestCmd(t, "json", dir)
	require.Error(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, 1, resp.Data.Failed)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
}

func TestTestCommandGolden(t *testing.T) {
	dir := t.TempDir()
	writeCopyScenario(t, dir, "copy.yaml", 4)
	goldenPath := filepath.Join(dir, "golden", "copy.golden")

	output, err := runTestCmd(t, "text", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, output, "✓ copy (golden updated)")

	data, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Equal(t, copySnapshot, string(data))

	// golden files are not picked up as scenarios
	output, err = runTestCmd(t, "text", dir)
	require.NoError(t, err)
	assert.Contains(t, output, "1 total")

	require.NoError(t, os.WriteFile(goldenPath, []byte("scenario copy\n"), 0644))
	output, err = runTestCmd(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, output, "Golden file mismatch")
}

func TestTestCommandFilter(t *testing.T) {
	dir := t.TempDir()
	writeCopyScenario(t, dir, "copy-one.yaml", 4)
	writeCopyScenario(t, dir, "other.yml", 5)

	output, err := runTestCmd(t, "text", dir, "--filter", "copy-*")
	require.NoError(t, err)
	assert.Contains(t, output, "1 passed, 0 failed, 1 total")

	_, err = runTestCmd(t, "text", dir, "--filter", "[")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeScanError)
}

func TestTestCommandLoadError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.yaml", "name: broken\n")

	output, err := runTestCmd(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, output, "✗ broken.yaml")
	assert.Contains(t, output, "Load error: failed to load scenario")
}

func TestTestCommandNoScenarios(t *testing.T) {
	output, err := runTestCmd(t, "text", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "No scenarios found.\n", output)

	output, err = runTestCmd(t, "json", t.TempDir())
	require.NoError(t, err)
	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 0, resp.Data.Total)
}

func TestTestCommandMissingDirectory(t *testing.T) {
	_, err := runTestCmd(t, "text", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNotFound)
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("a", "b", "golden", "c.golden"), goldenFilePath(filepath.Join("a", "b", "c.yaml")))
}
