package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/athena/internal/syncreg"
)

// withNamed runs fn while holding the store and directory read locks and
// the named root's object lock.
func (db *DB) withNamed(name string, exclusive bool, fn func(root *Object) error) error {
	n, err := NormalizeName(name)
	if err != nil {
		return err
	}
	db.rlockStore()
	defer db.runlockStore()
	db.rlockDir()
	defer db.runlockDir()

	id, ok := db.names[n]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchSet, n)
	}
	root := db.slots[id].obj
	if exclusive {
		db.locks.Lock(root.handle)
		defer db.locks.Unlock(root.handle)
	} else {
		db.locks.RLock(root.handle)
		defer db.locks.RUnlock(root.handle)
	}
	return fn(root)
}

// AddMember inserts member into the named set and reports whether the
// set changed.
func (db *DB) AddMember(name string, member ID) (bool, error) {
	var added bool
	err := db.withNamed(name, true, func(root *Object) error {
		if db.objectLocked(member) == nil {
			return fmt.Errorf("%w: %d", ErrNoSuchObject, member)
		}
		if added = root.set.Add(member); added {
			db.epoch.Add(1)
		}
		return nil
	})
	return added, err
}

// RemoveMember deletes member from the named set and reports whether the
// set changed.
func (db *DB) RemoveMember(name string, member ID) (bool, error) {
	var removed bool
	err := db.withNamed(name, true, func(root *Object) error {
		removed = root.set.Remove(member)
		return nil
	})
	return removed, err
}

// ContainsMember reports whether member belongs to the named set.
func (db *DB) ContainsMember(name string, member ID) (bool, error) {
	var found bool
	err := db.withNamed(name, false, func(root *Object) error {
		found = root.set.Contains(member)
		return nil
	})
	return found, err
}

// MoveMember removes member from one named set and adds it to another as
// a single step.
func (db *DB) MoveMember(from, to string, member ID) error {
	f, err := NormalizeName(from)
	if err != nil {
		return err
	}
	t, err := NormalizeName(to)
	if err != nil {
		return err
	}
	db.rlockStore()
	defer db.runlockStore()
	db.rlockDir()
	defer db.runlockDir()

	fromID, ok := db.names[f]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchSet, f)
	}
	toID, ok := db.names[t]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchSet, t)
	}
	if !db.moveLocked(db.slots[fromID].obj, db.slots[toID].obj, member) {
		var b strings.Builder
		db.renderLocked(&b, member, map[ID]bool{})
		return fmt.Errorf("%w: %s in %s", ErrNotMember, b.String(), f)
	}
	return nil
}

// moveLocked moves member from src to dst under both object locks and
// reports whether src held it.
func (db *DB) moveLocked(src, dst *Object, member ID) bool {
	if src == dst {
		db.locks.RLock(src.handle)
		defer db.locks.RUnlock(src.handle)
		return src.set.Contains(member)
	}

	// Two object locks: always taken in handle order.
	first, second := src.handle, dst.handle
	if first > second {
		first, second = second, first
	}
	db.locks.Lock(first)
	defer db.locks.Unlock(first)
	db.locks.Lock(second)
	defer db.locks.Unlock(second)

	if !src.set.Contains(member) {
		return false
	}
	src.set.Remove(member)
	dst.set.Add(member)
	db.epoch.Add(1)
	return true
}

// PopMember removes and returns a uniformly chosen member of the named
// set. When sc is non-nil the member is pinned to it so it survives a
// concurrent collection until the caller is done with it.
func (db *DB) PopMember(sc *Scope, name string) (ID, error) {
	var member ID
	err := db.withNamed(name, true, func(root *Object) error {
		id, err := db.randomMember(root.set)
		if err != nil {
			return fmt.Errorf("pop %s: %w", name, err)
		}
		root.set.Remove(id)
		member = id
		if sc != nil {
			sc.keep(id)
		}
		return nil
	})
	return member, err
}

// RandomMember returns a uniformly chosen member of the named set without
// removing it. When sc is non-nil the member is pinned to it.
func (db *DB) RandomMember(sc *Scope, name string) (ID, error) {
	var member ID
	err := db.withNamed(name, false, func(root *Object) error {
		id, err := db.randomMember(root.set)
		if err != nil {
			return fmt.Errorf("rand %s: %w", name, err)
		}
		member = id
		if sc != nil {
			sc.keep(id)
		}
		return nil
	})
	return member, err
}

// AdvisoryHandle resolves the LOCK/UNLOCK handle of a named set.
func (db *DB) AdvisoryHandle(name string) (syncreg.Handle, error) {
	n, err := NormalizeName(name)
	if err != nil {
		return 0, err
	}
	db.rlockStore()
	defer db.runlockStore()
	db.rlockDir()
	defer db.runlockDir()
	id, ok := db.names[n]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNoSuchSet, n)
	}
	return db.slots[id].obj.advisory, nil
}

// LockName blocks until the caller holds the named set's advisory lock
// and returns its handle.
//
// Advisory locks do not guard data operations; they let clients
// coordinate among themselves. Removing the set releases its lock.
func (db *DB) LockName(name string) (syncreg.Handle, error) {
	h, err := db.AdvisoryHandle(name)
	if err != nil {
		return 0, err
	}
	if !db.locks.Lock(h) {
		return 0, fmt.Errorf("%w: %s", ErrNoSuchSet, name)
	}
	return h, nil
}

// UnlockName releases the named set's advisory lock and returns its
// handle.
func (db *DB) UnlockName(name string) (syncreg.Handle, error) {
	h, err := db.AdvisoryHandle(name)
	if err != nil {
		return 0, err
	}
	if err := db.UnlockHandle(h); err != nil {
		return 0, fmt.Errorf("unlock %s: %w", name, err)
	}
	return h, nil
}

// UnlockHandle releases an advisory lock by handle. Releasing the lock
// of a removed set is a no-op.
func (db *DB) UnlockHandle(h syncreg.Handle) error {
	if err := db.locks.Unlock(h); err != nil {
		if errors.Is(err, syncreg.ErrNotHeld) {
			return ErrNotLocked
		}
		return err
	}
	return nil
}
