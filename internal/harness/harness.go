package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/athena/internal/command"
	"github.com/roach88/athena/internal/eval"
	"github.com/roach88/athena/internal/journal"
	"github.com/roach88/athena/internal/store"
	"github.com/roach88/athena/internal/testutil"
)

// Harness executes one scenario against a fresh store.
type Harness struct {
	db       *store.DB
	d        *command.Dispatcher
	journal  *journal.Journal
	sessions map[string]*command.Session
	logger   *slog.Logger
	shutdown bool
}

// Option configures a harness run.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger for the store, evaluator and dispatcher.
// Defaults to a logger that discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Run executes a scenario and returns its result. The error is non-nil
// only when the harness itself could not be set up; failed expectations
// are reported in Result.Errors.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	return RunContext(context.Background(), scenario, opts...)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	h, err := newHarness(scenario, o.logger)
	if err != nil {
		return nil, err
	}
	defer h.journal.Close()

	result := NewResult()
	h.executeSteps(ctx, scenario.Steps, result)
	h.closeSessions()

	trace, err := h.journal.ReadRecent(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("reading trace: %w", err)
	}
	result.Trace = trace

	for i, a := range scenario.Assertions {
		if err := evaluateAssertion(h.db, trace, a); err != nil {
			result.AddError(fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}

	h.logger.Info("scenario finished",
		"scenario", scenario.Name,
		"steps", len(scenario.Steps),
		"pass", result.Pass,
	)
	return result, nil
}

func newHarness(scenario *Scenario, logger *slog.Logger) (*Harness, error) {
	seed := scenario.Seed
	if seed == 0 {
		seed = testutil.Seed
	}
	storeOpts := []store.Option{
		store.WithLogger(logger),
		store.WithRand(testutil.NewRand(seed)),
	}
	evalOpts := []eval.Option{eval.WithLogger(logger)}
	if l := scenario.Limits; l != nil {
		storeOpts = append(storeOpts, store.WithMaxObjects(l.MaxObjects))
		limits := eval.DefaultLimits()
		if l.MaxPowersetCard > 0 {
			limits.MaxPowersetCard = l.MaxPowersetCard
		}
		if l.MaxProductSize > 0 {
			limits.MaxProductSize = l.MaxProductSize
		}
		evalOpts = append(evalOpts, eval.WithLimits(limits))
	}

	// Deterministic sequence numbers keep traces identical between runs.
	j, err := journal.Open(":memory:", journal.WithSequencer(testutil.NewDeterministicClock()))
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}

	db := store.New(storeOpts...)
	return &Harness{
		db:       db,
		d:        command.New(db, eval.New(db, evalOpts...), command.WithJournal(j), command.WithLogger(logger)),
		journal:  j,
		sessions: make(map[string]*command.Session),
		logger:   logger,
	}, nil
}

// session returns the named session, opening it on first use.
func (h *Harness) session(name string) *command.Session {
	if name == "" {
		name = DefaultSession
	}
	s, ok := h.sessions[name]
	if !ok {
		s = command.NewSession(name)
		h.sessions[name] = s
	}
	return s
}

// executeSteps sends every step and checks its expectation. Steps after
// SHUTDOWN are not sent.
func (h *Harness) executeSteps(ctx context.Context, steps []Step, result *Result) {
	for i, step := range steps {
		if h.shutdown {
			result.AddError(fmt.Sprintf("step %d: %q sent after SHUTDOWN", i, step.Send))
			continue
		}

		sess := h.session(step.Session)
		reply := h.d.Execute(ctx, sess, step.Send)
		result.Transcript = append(result.Transcript, Exchange{
			Session: sess.ID,
			Send:    step.Send,
			Reply:   reply.Text,
		})

		switch {
		case step.Expect != nil && reply.Text != *step.Expect:
			result.AddError(fmt.Sprintf("step %d (%s): expected %q, got %q", i, step.Send, *step.Expect, reply.Text))
		case step.ExpectError && !strings.HasPrefix(reply.Text, "ERROR: "):
			result.AddError(fmt.Sprintf("step %d (%s): expected an error, got %q", i, step.Send, reply.Text))
		}

		switch reply.Status {
		case command.StatusQuit:
			h.d.CloseSession(sess)
			delete(h.sessions, sess.ID)
		case command.StatusShutdown:
			h.shutdown = true
		}
	}
}

func (h *Harness) closeSessions() {
	for name, s := range h.sessions {
		h.d.CloseSession(s)
		delete(h.sessions, name)
	}
}
