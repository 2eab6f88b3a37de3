package syncreg

import "sync"

// rwLock is a writer-preferring reader/writer lock whose release can fail.
//
// sync.RWMutex treats an unbalanced unlock as a fatal error. Locks held on
// behalf of network clients must survive a bad UNLOCK, so this lock tracks
// its holders and reports ErrNotHeld instead.
type rwLock struct {
	mu             sync.Mutex
	cond           *sync.Cond
	readers        int
	writer         bool
	waitingWriters int
	retired        bool
}

func newRWLock() *rwLock {
	l := &rwLock{}
	l.cond = sync.NewCond(&l.mu)
	return l
}

func (l *rwLock) rlock() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for !l.retired && (l.writer || l.waitingWriters > 0) {
		l.cond.Wait()
	}
	if l.retired {
		return false
	}
	l.readers++
	return true
}

func (l *rwLock) lock() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.waitingWriters++
	for !l.retired && (l.writer || l.readers > 0) {
		l.cond.Wait()
	}
	l.waitingWriters--
	if l.retired {
		// a departing writer may be what readers were queued behind
		l.cond.Broadcast()
		return false
	}
	l.writer = true
	return true
}

func (l *rwLock) runlock() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.retired {
		return nil
	}
	if l.readers == 0 {
		return ErrNotHeld
	}
	l.readers--
	if l.readers == 0 {
		l.cond.Broadcast()
	}
	return nil
}

func (l *rwLock) unlock() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.retired {
		return nil
	}
	if !l.writer {
		return ErrNotHeld
	}
	l.writer = false
	l.cond.Broadcast()
	return nil
}

// retire wakes every waiter; pending and future acquisitions fail.
func (l *rwLock) retire() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.retired = true
	l.cond.Broadcast()
}
