package harness

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/athena/internal/journal"
	"github.com/roach88/athena/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes the trace to help debug the failure.
type AssertionError struct {
	Type     string          // Assertion type for categorization
	Expected string          // Human-readable expected outcome
	Actual   string          // Human-readable actual outcome
	Trace    []journal.Entry // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, entry := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s\n", entry.Seq, entry.Command, strings.Join(entry.Args, " "))
		}
	}
	return buf.String()
}

// evaluateAssertion dispatches one assertion.
func evaluateAssertion(db *store.DB, trace []journal.Entry, a Assertion) error {
	switch a.Type {
	case AssertSetEquals:
		return assertSetEquals(db, a)
	case AssertSetMissing:
		return assertSetMissing(db, a)
	case AssertObjects:
		return assertObjects(db, a)
	case AssertTraceCount:
		return assertTraceCount(trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(trace, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertSetEquals renders the named set and compares it with the expected
// text.
func assertSetEquals(db *store.DB, a Assertion) error {
	id, err := db.Lookup(a.Name)
	if err != nil {
		return &AssertionError{
			Type:     AssertSetEquals,
			Expected: fmt.Sprintf("%s = %s", a.Name, a.Value),
			Actual:   err.Error(),
		}
	}
	got, err := db.Render(id)
	if err != nil {
		return fmt.Errorf("render %s: %w", a.Name, err)
	}
	if got != a.Value {
		return &AssertionError{
			Type:     AssertSetEquals,
			Expected: fmt.Sprintf("%s = %s", a.Name, a.Value),
			Actual:   fmt.Sprintf("%s = %s", a.Name, got),
		}
	}
	return nil
}

func assertSetMissing(db *store.DB, a Assertion) error {
	_, err := db.Lookup(a.Name)
	switch {
	case err == nil:
		return &AssertionError{
			Type:     AssertSetMissing,
			Expected: fmt.Sprintf("no set named %s", a.Name),
			Actual:   "set exists",
		}
	case errors.Is(err, store.ErrNoSuchSet):
		return nil
	default:
		return fmt.Errorf("lookup %s: %w", a.Name, err)
	}
}

// assertObjects collects garbage and then checks the object count. A
// command that leaks objects past its own scope fails this assertion.
func assertObjects(db *store.DB, a Assertion) error {
	db.Collect()
	if got := db.Stats().Objects; got != *a.Count {
		return &AssertionError{
			Type:     AssertObjects,
			Expected: fmt.Sprintf("%d live objects", *a.Count),
			Actual:   fmt.Sprintf("%d live objects", got),
		}
	}
	return nil
}

// assertTraceCount checks that the command appears exactly Count times.
func assertTraceCount(trace []journal.Entry, a Assertion) error {
	want := strings.ToUpper(a.Command)
	count := 0
	for _, e := range trace {
		if e.Command == want {
			count++
		}
	}
	if count != *a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", *a.Count, want),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertTraceOrder checks that the first occurrences of the commands
// appear in the given order. Intervening commands are allowed.
func assertTraceOrder(trace []journal.Entry, a Assertion) error {
	positions := make(map[string]int)
	for i, e := range trace {
		if _, seen := positions[e.Command]; !seen {
			positions[e.Command] = i + 1
		}
	}

	for _, c := range a.Commands {
		if positions[strings.ToUpper(c)] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all commands present: %v", a.Commands),
				Actual:   fmt.Sprintf("missing command: %s", c),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Commands); i++ {
		prev, curr := strings.ToUpper(a.Commands[i-1]), strings.ToUpper(a.Commands[i])
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("commands in order: %v", a.Commands),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}
