package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShell_Session(t *testing.T) {
	run, stdout, _ := createTestCLI(t, "SET A {1, 2}\n\nRANDSET\nQUIT\nPING\n", "shell")
	require.NoError(t, run())

	want := strings.Join([]string{
		Prompt + "OK.",
		Prompt + Prompt + "A",
		"{ 1, 2 }",
		Prompt + "Bye.",
		"",
	}, "\n")
	assert.Equal(t, want, stdout.String())
}

func TestShell_EndOfInput(t *testing.T) {
	run, stdout, _ := createTestCLI(t, "PING\n", "shell")
	require.NoError(t, run())
	assert.Equal(t, Prompt+"PONG.\n"+Prompt+"\n", stdout.String())
}

func TestShell_ErrorsDoNotEndTheSession(t *testing.T) {
	run, stdout, _ := createTestCLI(t, "EVAL {1\nEVAL {1}\n", "shell")
	require.NoError(t, run())
	assert.Contains(t, stdout.String(), "ERROR: Syntax error")
	assert.Contains(t, stdout.String(), "{ 1 }")
}
