package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "waveguide", cmd.Use)
	assert.Contains(t, cmd.Long, "specialized IR")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"validate"},
		{"specialize"},
		{"emit-llvm"},
		{"run"},
		{"test"},
		{"cache", "list"},
		{"cache", "runs"},
		{"cache", "clear"},
	}

	for _, path := range commands {
		name := path[len(path)-1]
		t.Run(name, func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "Command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, name, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	cacheFlag := cmd.PersistentFlags().Lookup("cache")
	require.NotNil(t, cacheFlag)
	assert.Equal(t, "", cacheFlag.DefValue)
}

func TestLoweringCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"specialize", "emit-llvm"} {
		subCmd, _, err := cmd.Find([]string{name})
		require.NoError(t, err)

		outputFlag := subCmd.Flags().Lookup("output")
		require.NotNil(t, outputFlag, name)
		assert.Equal(t, "o", outputFlag.Shorthand)
	}
}

func TestRunCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	runCmd, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)

	backendFlag := runCmd.Flags().Lookup("backend")
	require.NotNil(t, backendFlag)
	assert.Equal(t, "native", backendFlag.DefValue)

	for _, name := range []string{"inputs", "expect", "tolerance"} {
		assert.NotNil(t, runCmd.Flags().Lookup(name), name)
	}
}

func TestInvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--format", "xml", "validate", "testdata/add.cue"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestRootExecutesSubcommand(t *testing.T) {
	cmd := NewRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"validate", "testdata/add.cue"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "✓ Program valid")
}
