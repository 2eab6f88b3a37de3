package command

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/athena/internal/eval"
	"github.com/roach88/athena/internal/journal"
	"github.com/roach88/athena/internal/store"
	"github.com/roach88/athena/internal/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// createTestDispatcher builds a dispatcher over an empty seeded store.
func createTestDispatcher(t *testing.T, opts ...Option) *Dispatcher {
	t.Helper()
	logger := discardLogger()
	db := store.New(store.WithLogger(logger), store.WithRand(testutil.NewRand(testutil.Seed)))
	ev := eval.New(db, eval.WithLogger(logger))
	return New(db, ev, append([]Option{WithLogger(logger)}, opts...)...)
}

// createTestJournal opens an in-memory journal with deterministic
// sequence numbers.
func createTestJournal(t *testing.T) *journal.Journal {
	t.Helper()
	j, err := journal.Open(":memory:", journal.WithSequencer(testutil.NewDeterministicClock()))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

// exec runs line and returns the reply text.
func exec(t *testing.T, d *Dispatcher, s *Session, line string) string {
	t.Helper()
	return d.Execute(context.Background(), s, line).Text
}

// run executes each line in order and fails the test on the first reply
// that differs from want.
func run(t *testing.T, d *Dispatcher, s *Session, steps [][2]string) {
	t.Helper()
	for _, step := range steps {
		require.Equal(t, step[1], exec(t, d, s, step[0]), "command %q", step[0])
	}
}

type observed struct {
	command string
	status  Status
}

type recordingObserver struct {
	mu        sync.Mutex
	commands  []observed
	errors    []string
	collected []int
}

func (o *recordingObserver) ObserveCommand(command string, status Status, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.commands = append(o.commands, observed{command, status})
}

func (o *recordingObserver) ObserveError(command, class string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errors = append(o.errors, command+" "+class)
}

func (o *recordingObserver) ObserveCollect(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.collected = append(o.collected, n)
}
