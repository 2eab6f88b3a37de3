package journal

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/athena/internal/testutil"
)

// createTestJournal opens an in-memory journal closed at test end.
func createTestJournal(t *testing.T, opts ...Option) *Journal {
	t.Helper()
	j, err := Open(":memory:", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestOpen_AppliesSchemaVersion(t *testing.T) {
	j := createTestJournal(t)
	version, err := j.schemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, currentSchemaVersion, version)
}

func TestAppend_AssignsIncreasingSeq(t *testing.T) {
	ctx := context.Background()
	j := createTestJournal(t, WithSequencer(testutil.NewDeterministicClock()))

	seq1, err := j.Append(ctx, Entry{Session: "s1", Command: "SET", Args: []string{"A", "{1}"}, Status: StatusOK, Reply: "OK."})
	require.NoError(t, err)
	seq2, err := j.Append(ctx, Entry{Session: "s1", Command: "GC", Status: StatusOK, Reply: "Collected 0."})
	require.NoError(t, err)

	assert.Equal(t, int64(1), seq1)
	assert.Equal(t, int64(2), seq2)

	entries, err := j.ReadSession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, []string{"A", "{1}"}, entries[0].Args)
	assert.Equal(t, []string{}, entries[1].Args, "nil args are stored as an empty list")
	assert.Equal(t, "Collected 0.", entries[1].Reply)
}

func TestAppend_RejectsUnknownStatus(t *testing.T) {
	j := createTestJournal(t)
	_, err := j.Append(context.Background(), Entry{Session: "s", Command: "PING", Status: "maybe"})
	assert.Error(t, err)
}

func TestReadSession_Empty(t *testing.T) {
	j := createTestJournal(t)
	entries, err := j.ReadSession(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestReadRecent(t *testing.T) {
	ctx := context.Background()
	j := createTestJournal(t)
	for _, cmd := range []string{"PING", "GC", "TRUNC", "SETS"} {
		_, err := j.Append(ctx, Entry{Session: "s", Command: cmd, Status: StatusOK})
		require.NoError(t, err)
	}

	recent, err := j.ReadRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "TRUNC", recent[0].Command)
	assert.Equal(t, "SETS", recent[1].Command)

	all, err := j.ReadRecent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestSessions_OrderOfFirstEntry(t *testing.T) {
	ctx := context.Background()
	j := createTestJournal(t)
	for _, s := range []string{"b", "a", "b", "c"} {
		_, err := j.Append(ctx, Entry{Session: s, Command: "PING", Status: StatusOK})
		require.NoError(t, err)
	}

	sessions, err := j.Sessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "c"}, sessions)
}

func TestOpen_ResumesClock(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")

	j1, err := Open(path)
	require.NoError(t, err)
	_, err = j1.Append(ctx, Entry{Session: "s", Command: "PING", Status: StatusOK})
	require.NoError(t, err)
	_, err = j1.Append(ctx, Entry{Session: "s", Command: "PING", Status: StatusOK})
	require.NoError(t, err)
	require.NoError(t, j1.Close())

	j2, err := Open(path)
	require.NoError(t, err)
	defer j2.Close()
	seq, err := j2.Append(ctx, Entry{Session: "s", Command: "QUIT", Status: StatusOK})
	require.NoError(t, err)
	assert.Equal(t, int64(3), seq)
}

func TestAppend_Concurrent(t *testing.T) {
	ctx := context.Background()
	j := createTestJournal(t)

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 10 {
				_, err := j.Append(ctx, Entry{Session: string(rune('a' + i)), Command: "PING", Status: StatusOK})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	all, err := j.ReadRecent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 100)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Seq, all[i].Seq)
	}
}

func TestClock(t *testing.T) {
	c := NewClockAt(10)
	assert.Equal(t, int64(10), c.Current())
	assert.Equal(t, int64(11), c.Next())
	assert.Equal(t, int64(1), NewClock().Next())
}
