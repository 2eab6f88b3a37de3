package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/athena/internal/command"
	"github.com/roach88/athena/internal/store"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetrics_Commands(t *testing.T) {
	m := New()
	m.ObserveCommand("SET", command.StatusOK, time.Millisecond)
	m.ObserveCommand("SET", command.StatusOK, 2*time.Millisecond)
	m.ObserveCommand("DEL", command.StatusError, time.Millisecond)
	m.ObserveError("DEL", command.ClassLookup)

	out := scrape(t, m)
	assert.Contains(t, out, `athena_commands_total{command="SET",status="ok"} 2`)
	assert.Contains(t, out, `athena_commands_total{command="DEL",status="error"} 1`)
	assert.Contains(t, out, `athena_command_duration_seconds_count{command="SET"} 2`)
	assert.Contains(t, out, `athena_command_errors_total{class="lookup",command="DEL"} 1`)
}

func TestMetrics_CollectAndStore(t *testing.T) {
	m := New()
	m.ObserveCollect(5)
	m.ObserveCollect(0)
	m.ObserveStore(store.Stats{Objects: 12, Sets: 3, Pinned: 1})
	m.Sessions.Inc()

	out := scrape(t, m)
	assert.Contains(t, out, "athena_gc_runs_total 2")
	assert.Contains(t, out, "athena_gc_collected_objects_total 5")
	assert.Contains(t, out, "athena_store_objects 12")
	assert.Contains(t, out, "athena_store_named_sets 3")
	assert.Contains(t, out, "athena_store_pinned_objects 1")
	assert.Contains(t, out, "athena_sessions 1")
	assert.Contains(t, out, "go_goroutines")
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.ObserveCommand("PING", command.StatusOK, time.Microsecond)

	assert.Contains(t, scrape(t, a), `athena_commands_total{command="PING",status="ok"} 1`)
	assert.NotContains(t, scrape(t, b), `command="PING"`)
}
