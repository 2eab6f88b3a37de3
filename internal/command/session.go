package command

import (
	"maps"
	"slices"
	"sync"

	"github.com/roach88/athena/internal/syncreg"
)

// Session is the per-client state the dispatcher keeps between commands:
// its token and the advisory locks it holds.
type Session struct {
	ID string

	mu   sync.Mutex
	held map[syncreg.Handle]string
}

// NewSession creates a session with the given token.
func NewSession(id string) *Session {
	return &Session{ID: id, held: make(map[syncreg.Handle]string)}
}

func (s *Session) holds(h syncreg.Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.held[h]
	return ok
}

func (s *Session) hold(h syncreg.Handle, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.held[h] = name
}

func (s *Session) drop(h syncreg.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.held, h)
}

// takeAll empties the held set and returns its handles.
func (s *Session) takeAll() []syncreg.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	hs := slices.Collect(maps.Keys(s.held))
	clear(s.held)
	return hs
}

// Locked returns the names the session had when it took its advisory
// locks, sorted.
func (s *Session) Locked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Values(s.held))
}
