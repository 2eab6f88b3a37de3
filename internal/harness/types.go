package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/athena/internal/journal"
)

// Exchange is one request and its reply.
type Exchange struct {
	Session string `json:"session"`
	Send    string `json:"send"`
	Reply   string `json:"reply"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expectation and assertion held.
	Pass bool `json:"pass"`

	// Transcript holds every exchange in execution order.
	Transcript []Exchange `json:"transcript"`

	// Trace is the journal contents after the last step.
	Trace []journal.Entry `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:       true,
		Transcript: []Exchange{},
		Trace:      []journal.Entry{},
		Errors:     []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// FormatTranscript renders the transcript with one line per request and
// reply line.
func (r *Result) FormatTranscript() string {
	var b strings.Builder
	for _, ex := range r.Transcript {
		fmt.Fprintf(&b, "[%s] > %s\n", ex.Session, ex.Send)
		for line := range strings.SplitSeq(ex.Reply, "\n") {
			fmt.Fprintf(&b, "[%s] < %s\n", ex.Session, line)
		}
	}
	return b.String()
}
