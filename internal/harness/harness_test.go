package harness

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_MinimalScenario(t *testing.T) {
	result, err := Run(createTestScenario("minimal", [2]string{"PING", "PONG."}))
	require.NoError(t, err)

	assert.True(t, result.Pass)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Transcript, 1)
	assert.Equal(t, Exchange{Session: DefaultSession, Send: "PING", Reply: "PONG."}, result.Transcript[0])

	require.Len(t, result.Trace, 1)
	assert.Equal(t, int64(1), result.Trace[0].Seq)
	assert.Equal(t, "PING", result.Trace[0].Command)
	assert.Equal(t, DefaultSession, result.Trace[0].Session)
}

func TestRun_ReportsMismatchedReply(t *testing.T) {
	result, err := Run(createTestScenario("mismatch",
		[2]string{"SET A {1}", "OK."},
		[2]string{"EVAL A", "{ 2 }"},
		[2]string{"CARD A", "1"},
	))
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `step 1 (EVAL A): expected "{ 2 }", got "{ 1 }"`)
	assert.Len(t, result.Transcript, 3, "later steps still run")
}

func TestRun_ExpectError(t *testing.T) {
	s := &Scenario{
		Name:        "expect_error",
		Description: "error expectations",
		Steps: []Step{
			{Send: "DEL A", ExpectError: true},
			{Send: "PING", ExpectError: true},
		},
	}
	result, err := Run(s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "step 1 (PING): expected an error")
}

func TestRun_StepsWithoutExpectationAlwaysPass(t *testing.T) {
	s := &Scenario{
		Name:        "unchecked",
		Description: "no expectations",
		Steps:       []Step{{Send: "SET A {1}"}, {Send: "DEL B"}},
	}
	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass)
	assert.Equal(t, "ERROR: Set doesn't exist: B.", result.Transcript[1].Reply)
}

func TestRun_SessionsAreIndependent(t *testing.T) {
	s := &Scenario{
		Name:        "sessions",
		Description: "two sessions share one store",
		Steps: []Step{
			{Session: "a", Send: "SET A {1}", Expect: ptr("OK.")},
			{Session: "a", Send: "LOCK A", Expect: ptr("OK.")},
			{Session: "b", Send: "UNLOCK A", Expect: ptr("ERROR: Set is not locked: A.")},
			{Session: "b", Send: "EVAL A", Expect: ptr("{ 1 }")},
		},
	}
	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)

	sessions := make([]string, 0, len(result.Trace))
	for _, e := range result.Trace {
		sessions = append(sessions, e.Session)
	}
	assert.Equal(t, []string{"a", "a", "b", "b"}, sessions)
}

func TestRun_QuitReopensSession(t *testing.T) {
	s := &Scenario{
		Name:        "quit",
		Description: "a session that quit can send again",
		Steps: []Step{
			{Send: "SET A", Expect: ptr("OK.")},
			{Send: "LOCK A", Expect: ptr("OK.")},
			{Send: "QUIT", Expect: ptr("Bye.")},
			{Send: "LOCK A", Expect: ptr("OK.")},
		},
	}
	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
}

func TestRun_StepsAfterShutdownFail(t *testing.T) {
	s := createTestScenario("shutdown",
		[2]string{"SHUTDOWN", "Bye."},
		[2]string{"PING", "PONG."},
	)
	result, err := Run(s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	assert.Len(t, result.Transcript, 1)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `"PING" sent after SHUTDOWN`)
}

func TestRun_SeedMakesRandomRepliesReproducible(t *testing.T) {
	s := &Scenario{
		Name:        "seeded",
		Description: "random replies depend only on the seed",
		Seed:        42,
		Steps: []Step{
			{Send: "SET A {1, 2, 3, 4, 5, 6, 7, 8}"},
			{Send: "RAND A"},
			{Send: "POP A"},
			{Send: "POP A"},
		},
	}
	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)
	assert.Equal(t, first.FormatTranscript(), second.FormatTranscript())
}

func TestRun_Limits(t *testing.T) {
	s := &Scenario{
		Name:        "limits",
		Description: "evaluation and arena limits",
		Limits:      &Limits{MaxPowersetCard: 1, MaxObjects: 4},
		Steps: []Step{
			{Send: "SET A {1, 2}", Expect: ptr("OK.")},
			{Send: "EVAL A^", Expect: ptr("ERROR: Powerset of size 2 exceeds limit 1.")},
			{Send: "EVAL {1, 2, 3}", ExpectError: true},
			{Send: "EVAL A", Expect: ptr("{ 1, 2 }")},
		},
		Assertions: []Assertion{{Type: AssertObjects, Count: ptr(3)}},
	}
	result, err := Run(s)
	require.NoError(t, err)

	assert.True(t, result.Pass, result.Errors)
	assert.Contains(t, result.Transcript[2].Reply, "Object store is full")
}

func TestRun_InvalidScenario(t *testing.T) {
	_, err := Run(&Scenario{Name: "empty", Description: "no steps"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "steps list is required")
}

func TestRun_LogsResult(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	_, err := Run(createTestScenario("logged", [2]string{"PING", "PONG."}), WithLogger(logger))
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "scenario=logged")
	assert.Contains(t, logs.String(), "pass=true")
}

func TestFormatTranscript(t *testing.T) {
	r := NewResult()
	r.Transcript = []Exchange{
		{Session: "main", Send: "SET A {1}", Reply: "OK."},
		{Session: "b", Send: "RANDSET", Reply: "A\n{ 1 }"},
	}
	assert.Equal(t,
		"[main] > SET A {1}\n[main] < OK.\n[b] > RANDSET\n[b] < A\n[b] < { 1 }\n",
		r.FormatTranscript())
}
