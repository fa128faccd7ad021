package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runValidateCmd(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestValidateValidProgram(t *testing.T) {
	output, err := runValidateCmd(t, "text", "testdata/add.cue")
	require.NoError(t, err)
	assert.Equal(t, "✓ Program valid\n", output)
}

func TestValidateValidProgramJSON(t *testing.T) {
	output, err := runValidateCmd(t, "json", "testdata/add.cue")
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Empty(t, resp.Data.Loops)
}

func TestValidateReportsLoops(t *testing.T) {
	output, err := runValidateCmd(t, "text", "testdata/loop.cue")
	require.NoError(t, err)
	assert.Contains(t, output, "✓ Program valid")
	assert.Contains(t, output, "  info: loop l0 -> l0")
}

func TestValidateInvalidProgram(t *testing.T) {
	output, err := runValidateCmd(t, "text", "testdata/invalid.cue")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "validation failed")
	assert.Contains(t, output, "✗ Validation failed")
	assert.Contains(t, output, "  E101: ")
}

func TestValidateInvalidProgramJSON(t *testing.T) {
	output, err := runValidateCmd(t, "json", "testdata/invalid.cue")
	require.Error(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.NotEmpty(t, resp.Data.Errors)
	assert.Equal(t, "E101", resp.Data.Errors[0].Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E101", resp.Error.Code)
}

func TestValidateMissingFile(t *testing.T) {
	output, err := runValidateCmd(t, "text", "/nonexistent/program.cue")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNotFound)
	assert.Contains(t, output, "program not found")
}

func TestValidateDirectory(t *testing.T) {
	_, err := runValidateCmd(t, "text", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a file")
}

func TestValidateCompileError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.cue")
	require.NoError(t, os.WriteFile(path, []byte("variables: {\n"), 0644))

	output, err := runValidateCmd(t, "text", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeLoadFailed)
	assert.Contains(t, output, "Error [E004]")
}

func TestValidateRequiresOneArg(t *testing.T) {
	_, err := runValidateCmd(t, "text")
	require.Error(t, err)
}
