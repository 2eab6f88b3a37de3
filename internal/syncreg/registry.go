package syncreg

import (
	"errors"
	"fmt"
	"sync"
)

// Handle names a lockable resource. Handles are opaque to the registry.
type Handle uint64

// Reserved handles for the two process-wide locks. Object handles never
// collide with these because they carry a non-zero generation in the
// upper half.
const (
	StoreHandle     Handle = 1
	DirectoryHandle Handle = 2
)

var (
	// ErrAlreadyRegistered is returned by Register for a live handle.
	ErrAlreadyRegistered = errors.New("handle already registered")

	// ErrNotHeld is returned when releasing a lock the caller does not hold.
	ErrNotHeld = errors.New("lock not held")
)

// Registry maps handles to reader/writer locks.
//
// The registry's own mutex only guards the map. Lock acquisition happens
// outside it, so a blocked acquirer never stalls registration of other
// handles.
//
// Operations on a handle that is not registered are no-ops: acquisitions
// report false and releases return nil. Unregistering a handle wakes all
// of its waiters, whose acquisitions then report false.
type Registry struct {
	mu    sync.Mutex
	locks map[Handle]*rwLock
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{locks: make(map[Handle]*rwLock)}
}

// Register creates the lock for h.
func (r *Registry) Register(h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.locks[h]; ok {
		return fmt.Errorf("register %#x: %w", uint64(h), ErrAlreadyRegistered)
	}
	r.locks[h] = newRWLock()
	return nil
}

// Unregister removes the lock for h and reports whether it existed.
func (r *Registry) Unregister(h Handle) bool {
	r.mu.Lock()
	l, ok := r.locks[h]
	delete(r.locks, h)
	r.mu.Unlock()
	if ok {
		l.retire()
	}
	return ok
}

// Len returns the number of registered handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locks)
}

func (r *Registry) lookup(h Handle) *rwLock {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.locks[h]
}

// RLock acquires h for shared access, blocking while a writer holds or
// waits for it.
func (r *Registry) RLock(h Handle) bool {
	if l := r.lookup(h); l != nil {
		return l.rlock()
	}
	return false
}

// Lock acquires h for exclusive access.
func (r *Registry) Lock(h Handle) bool {
	if l := r.lookup(h); l != nil {
		return l.lock()
	}
	return false
}

// RUnlock releases a shared hold on h.
func (r *Registry) RUnlock(h Handle) error {
	if l := r.lookup(h); l != nil {
		return l.runlock()
	}
	return nil
}

// Unlock releases an exclusive hold on h.
func (r *Registry) Unlock(h Handle) error {
	if l := r.lookup(h); l != nil {
		return l.unlock()
	}
	return nil
}
