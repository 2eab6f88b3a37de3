package testutil

import (
	"fmt"
	"sync"
)

// SequentialSessions hands out predictable session tokens
// ("session-1", "session-2", ...) so transcripts and journal contents are
// byte-identical between runs.
type SequentialSessions struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialSessions creates a generator. An empty prefix means
// "session".
func NewSequentialSessions(prefix string) *SequentialSessions {
	if prefix == "" {
		prefix = "session"
	}
	return &SequentialSessions{prefix: prefix}
}

// Generate returns the next token.
func (g *SequentialSessions) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
