package store

import (
	"github.com/roach88/athena/internal/bitset"
)

// membersLocked snapshots the identifiers obj refers to, taking its read lock
// when it can change.
func (db *DB) membersLocked(obj *Object) []ID {
	if obj.rooted {
		db.locks.RLock(obj.handle)
		defer db.locks.RUnlock(obj.handle)
	}
	return obj.members()
}

// flattenInto adds to acc every identifier transitively reachable from
// id's members. Sets and tuples contribute their own identifier and their
// members; scalars only their identifier.
//
// acc doubles as the record of what is already flattened, so shared and
// self-containing structures are walked once.
func (db *DB) flattenInto(acc *bitset.Set, id ID) {
	obj := db.objectLocked(id)
	if obj == nil || obj.kind == KindScalar {
		return
	}
	for _, m := range db.membersLocked(obj) {
		if !acc.Add(m) {
			continue
		}
		db.flattenInto(acc, m)
	}
}

// Flatten returns the identifiers transitively reachable from id.
func (db *DB) Flatten(id ID) *bitset.Set {
	db.rlockStore()
	defer db.runlockStore()
	acc := bitset.New()
	db.flattenInto(acc, id)
	return acc
}

// liveLocked computes the union of every root, its flattening, and the
// same for every pinned object. Requires the store
// lock and the directory read lock.
func (db *DB) liveLocked() *bitset.Set {
	acc := bitset.New()
	for _, id := range db.names {
		acc.Add(id)
		db.flattenInto(acc, id)
	}
	for _, id := range db.pinned() {
		if db.objectLocked(id) == nil {
			continue
		}
		acc.Add(id)
		db.flattenInto(acc, id)
	}
	return acc
}

// Collect reclaims every object not reachable from a root or a pin and
// returns how many were reclaimed.
func (db *DB) Collect() int {
	db.lockStore()
	defer db.unlockStore()
	db.rlockDir()
	defer db.runlockDir()

	live := db.liveLocked()
	n := 0
	for i := range db.slots {
		id := ID(i)
		if db.slots[i].obj == nil || live.Contains(id) {
			continue
		}
		db.releaseLocked(id)
		n++
	}
	db.logger.Info("collection finished", "collected", n, "live", db.live)
	return n
}

// TruncateAll compacts the bitmap of every stored set, bound or not, and
// returns the bytes reclaimed.
func (db *DB) TruncateAll() int {
	db.lockStore()
	defer db.unlockStore()
	db.rlockDir()
	defer db.runlockDir()

	freed := 0
	for _, s := range db.slots {
		obj := s.obj
		if obj == nil || obj.kind != KindSet {
			continue
		}
		db.locks.Lock(obj.handle)
		freed += obj.set.Truncate()
		_ = db.locks.Unlock(obj.handle)
	}
	db.logger.Info("truncate finished", "bytes", freed)
	return freed
}
