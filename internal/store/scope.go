package store

import (
	"fmt"

	"github.com/roach88/athena/internal/bitset"
)

// Scope tracks the objects one command registers or refers to.
//
// Every identifier a scope hands out is pinned: the collector treats it as
// live until the scope releases it. Rolling a scope back also discards
// the objects it created, unless a root or another pin can still reach
// them.
//
// A Scope belongs to a single goroutine.
type Scope struct {
	db      *DB
	id      uint64
	start   uint64
	pinned  []ID
	created []ID
}

// Savepoint marks a position in a scope for Rollback.
type Savepoint struct {
	pinned  int
	created int
	epoch   uint64
}

// NewScope starts an empty scope.
func (db *DB) NewScope() *Scope {
	return &Scope{db: db, id: db.scopeSeq.Add(1), start: db.epoch.Load()}
}

func (db *DB) pin(id ID) {
	db.pinMu.Lock()
	defer db.pinMu.Unlock()
	db.pins[id]++
}

func (db *DB) unpin(ids []ID) {
	db.pinMu.Lock()
	defer db.pinMu.Unlock()
	for _, id := range ids {
		if db.pins[id] <= 1 {
			delete(db.pins, id)
		} else {
			db.pins[id]--
		}
	}
}

func (db *DB) pinned() []ID {
	db.pinMu.Lock()
	defer db.pinMu.Unlock()
	ids := make([]ID, 0, len(db.pins))
	for id := range db.pins {
		ids = append(ids, id)
	}
	return ids
}

func (sc *Scope) keep(id ID) {
	sc.db.pin(id)
	sc.pinned = append(sc.pinned, id)
}

// Register stores obj (or finds an equal stored object) and pins the
// result.
func (sc *Scope) Register(obj *Object) (ID, error) {
	ids, err := sc.RegisterAll([]*Object{obj})
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

// RegisterAll registers objs in order under one store lock. On error the
// objects registered so far stay tracked by the scope, so a Rollback
// removes them.
func (sc *Scope) RegisterAll(objs []*Object) ([]ID, error) {
	db := sc.db
	db.lockStore()
	defer db.unlockStore()

	ids := make([]ID, 0, len(objs))
	for _, obj := range objs {
		id, created, err := db.registerLocked(obj, sc.id)
		if err != nil {
			return ids, err
		}
		sc.keep(id)
		if created {
			sc.created = append(sc.created, id)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Resolve looks up a named set and pins its root.
func (sc *Scope) Resolve(name string) (ID, error) {
	n, err := NormalizeName(name)
	if err != nil {
		return 0, err
	}
	db := sc.db
	db.rlockStore()
	defer db.runlockStore()
	db.rlockDir()
	defer db.runlockDir()

	id, ok := db.names[n]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNoSuchSet, n)
	}
	sc.keep(id)
	return id, nil
}

// Keep pins an existing object.
func (sc *Scope) Keep(id ID) error {
	db := sc.db
	db.rlockStore()
	defer db.runlockStore()
	obj := db.objectLocked(id)
	if obj == nil {
		return fmt.Errorf("%w: %d", ErrNoSuchObject, id)
	}
	if obj.owner != sc.id {
		obj.shared.Store(true)
	}
	sc.keep(id)
	return nil
}

// Savepoint returns the current position.
func (sc *Scope) Savepoint() Savepoint {
	return Savepoint{pinned: len(sc.pinned), created: len(sc.created), epoch: sc.db.epoch.Load()}
}

// Rollback unpins everything since sp and discards the objects created
// since sp that nothing else keeps alive. It returns how many objects
// were discarded.
func (sc *Scope) Rollback(sp Savepoint) int {
	sp.pinned = min(sp.pinned, len(sc.pinned))
	sp.created = min(sp.created, len(sc.created))
	n := sc.db.discard(sc.created[sp.created:], sc.pinned[sp.pinned:], sp.epoch)
	sc.pinned = sc.pinned[:sp.pinned]
	sc.created = sc.created[:sp.created]
	return n
}

// Release drops every pin. Objects stay in the store until collected.
func (sc *Scope) Release() {
	sc.db.unpin(sc.pinned)
	sc.pinned = nil
	sc.created = nil
}

// Close releases the scope after success or rolls it back entirely after
// failure.
func (sc *Scope) Close(err error) {
	if err != nil {
		sc.Rollback(Savepoint{epoch: sc.start})
		return
	}
	sc.Release()
}

// discard unpins and then releases the candidates that are unreachable
// from every root and every remaining pin. epoch is the store epoch when
// the candidates started being created.
func (db *DB) discard(candidates, unpin []ID, epoch uint64) int {
	db.lockStore()
	defer db.unlockStore()
	db.rlockDir()
	defer db.runlockDir()

	db.unpin(unpin)
	if len(candidates) == 0 {
		return 0
	}
	var live *bitset.Set
	if !db.privateLocked(candidates, epoch) {
		live = db.liveLocked()
	}
	n := 0
	for _, id := range candidates {
		obj := db.objectLocked(id)
		if obj == nil || obj.rooted || (live != nil && live.Contains(id)) {
			continue
		}
		db.releaseLocked(id)
		n++
	}
	if n > 0 {
		db.logger.Debug("scratch objects discarded", "objects", n)
	}
	return n
}

// privateLocked reports whether no root or pin can reach any candidate:
// no root gained a member or changed since epoch, and no candidate was
// handed to anyone but its creator.
func (db *DB) privateLocked(candidates []ID, epoch uint64) bool {
	if db.epoch.Load() != epoch {
		return false
	}
	for _, id := range candidates {
		obj := db.objectLocked(id)
		if obj != nil && (obj.rooted || obj.shared.Load()) {
			return false
		}
	}
	return true
}
