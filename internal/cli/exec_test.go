package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExec_Arguments(t *testing.T) {
	run, stdout, _ := createTestCLI(t, "", "exec", "SET A {1, 2}", "CARD A^", "EVAL A * {2, 3}")
	require.NoError(t, run())
	assert.Equal(t, "OK.\n4\n{ 2 }\n", stdout.String())
}

func TestExec_FailedCommandSetsExitCode(t *testing.T) {
	run, stdout, _ := createTestCLI(t, "", "exec", "DEL A", "PING")
	err := run()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "ERROR: Set doesn't exist: A.\nPONG.\n", stdout.String())
}

func TestExec_StopsAtQuit(t *testing.T) {
	run, stdout, _ := createTestCLI(t, "", "exec", "PING", "QUIT", "PING")
	require.NoError(t, run())
	assert.Equal(t, "PONG.\nBye.\n", stdout.String())
}

func TestExec_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.txt")
	require.NoError(t, os.WriteFile(path, []byte("# build two sets\nSET A {1}\n\nSET B {A}\nSETS\n"), 0o644))

	run, stdout, _ := createTestCLI(t, "", "exec", "--file", path)
	require.NoError(t, run())
	assert.Equal(t, "OK.\nOK.\nA = { 1 }\nB = { { 1 } }\n", stdout.String())
}

func TestExec_JSON(t *testing.T) {
	run, stdout, _ := createTestCLI(t, "", "exec", "--format", "json", "SET A {1}", "EVAL B")
	err := run()
	require.Error(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   ExecResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Failed)
	assert.Equal(t, []ExecReply{
		{Command: "SET A {1}", Reply: "OK.", Status: "ok"},
		{Command: "EVAL B", Reply: "ERROR: Set doesn't exist: B.", Status: "error"},
	}, resp.Data.Replies)
}

func TestExec_ConfigLimits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "athena.cue")
	require.NoError(t, os.WriteFile(path, []byte("limits: max_powerset_card: 1\n"), 0o644))

	run, stdout, _ := createTestCLI(t, "", "exec", "--config", path, "EVAL {1, 2}^")
	require.Error(t, run())
	assert.Equal(t, "ERROR: Powerset of size 2 exceeds limit 1.\n", stdout.String())
}

func TestExec_CommandErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"no commands", []string{"exec"}, "no commands given"},
		{"missing file", []string{"exec", "--file", "/nonexistent/script.txt"}, "failed to read commands"},
		{"file and args", []string{"exec", "--file", "x.txt", "PING"}, "mutually exclusive"},
		{"bad config", []string{"exec", "--config", "/nonexistent/athena.cue", "PING"}, "invalid configuration"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run, _, _ := createTestCLI(t, "", tt.args...)
			err := run()
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestScriptLines(t *testing.T) {
	lines, err := scriptLines(strings.NewReader("  PING  \n#comment\n\r\nEVAL {1}\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"PING", "EVAL {1}"}, lines)
}
