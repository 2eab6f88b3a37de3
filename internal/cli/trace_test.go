package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/athena/internal/journal"
)

// createTestJournalFile writes a journal with two sessions and returns its
// path.
func createTestJournalFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := journal.Open(path)
	require.NoError(t, err)

	ctx := context.Background()
	for _, e := range []journal.Entry{
		{Session: "s1", Command: "SET", Args: []string{"A", "{1}"}, Status: journal.StatusOK, Reply: "OK."},
		{Session: "s2", Command: "EVAL", Args: []string{"B"}, Status: journal.StatusError, Reply: "ERROR: Set doesn't exist: B."},
		{Session: "s1", Command: "RANDSET", Status: journal.StatusOK, Reply: "A\n{ 1 }"},
		{Session: "s1", Command: "EVAL", Args: []string{"A"}, Status: journal.StatusOK, Reply: "{ 1 }"},
	} {
		_, err := j.Append(ctx, e)
		require.NoError(t, err)
	}
	require.NoError(t, j.Close())
	return path
}

func TestTrace_Text(t *testing.T) {
	path := createTestJournalFile(t)
	run, stdout, _ := createTestCLI(t, "", "trace", "--journal", path)
	require.NoError(t, run())

	assert.Equal(t, "Journal: "+path+"\n\n"+
		"[1] s1 SET A {1} -> ok\n"+
		"[2] s2 EVAL B -> error\n"+
		"[3] s1 RANDSET -> ok\n"+
		"[4] s1 EVAL A -> ok\n"+
		"\nStats: 4 entries, 1 errors, 2 sessions\n", stdout.String())
}

func TestTrace_VerboseShowsReplies(t *testing.T) {
	path := createTestJournalFile(t)
	run, stdout, _ := createTestCLI(t, "", "trace", "--journal", path, "--session", "s1", "--command", "randset", "-v")
	require.NoError(t, run())

	assert.Contains(t, stdout.String(), "Session: s1\n")
	assert.Contains(t, stdout.String(), "[3] s1 RANDSET -> ok\n      A\n      { 1 }\n")
	assert.Contains(t, stdout.String(), "Stats: 1 entries, 0 errors, 1 sessions")
}

func TestTrace_JSONWithLimit(t *testing.T) {
	path := createTestJournalFile(t)
	run, stdout, _ := createTestCLI(t, "", "trace", "--journal", path, "--limit", "2", "--format", "json")
	require.NoError(t, run())

	var resp struct {
		Status string      `json:"status"`
		Data   TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Entries, 2)
	assert.Equal(t, int64(3), resp.Data.Entries[0].Seq)
	assert.Equal(t, int64(4), resp.Data.Entries[1].Seq)
	assert.Equal(t, TraceStats{Entries: 2, Errors: 0, Sessions: 1}, resp.Data.Stats)
}

func TestTrace_NoEntries(t *testing.T) {
	path := createTestJournalFile(t)
	run, stdout, _ := createTestCLI(t, "", "trace", "--journal", path, "--session", "nobody")
	require.NoError(t, run())
	assert.Contains(t, stdout.String(), "No entries found.")
}

func TestTrace_MissingJournal(t *testing.T) {
	run, _, _ := createTestCLI(t, "", "trace", "--journal", filepath.Join(t.TempDir(), "none.db"))
	err := run()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "journal not found")
}

func TestTrace_RequiresJournalFlag(t *testing.T) {
	run, _, _ := createTestCLI(t, "", "trace")
	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "journal" not set`)
}
