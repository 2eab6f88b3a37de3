package store

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/roach88/athena/internal/bitset"
	"github.com/roach88/athena/internal/syncreg"
)

const (
	// DefaultGrowthStep is how many slots the arena adds when full.
	DefaultGrowthStep = 256

	// DefaultInitialCapacity is the arena size at startup.
	DefaultInitialCapacity = 256

	maxSlots = math.MaxUint32

	// advisoryBit marks LOCK/UNLOCK handles. The remaining bits number
	// them, so a handle is never reused.
	advisoryBit syncreg.Handle = 1 << 63
)

type slot struct {
	obj *Object
	gen uint32
}

// DB is the in-memory database: the object arena, the named-set
// directory, and the lock registry both share.
//
// Lock order is store, then directory, then objects. An object lock is
// never held while acquiring the store or directory lock, and at most one
// object lock is held at a time outside MoveMember.
type DB struct {
	locks *syncreg.Registry

	// Guarded by the store lock.
	slots    []slot
	live     int
	freeHint int
	index    map[uint64][]ID
	roots    map[ID]struct{}
	advSeq   uint64

	// Guarded by the directory lock.
	names map[string]ID

	pinMu sync.Mutex
	pins  map[ID]int

	// epoch advances whenever a root gains a member or an object becomes
	// a root. scopeSeq numbers scopes.
	epoch    atomic.Uint64
	scopeSeq atomic.Uint64

	rngMu sync.Mutex
	rng   *rand.Rand

	initial    int
	growth     int
	maxObjects int
	logger     *slog.Logger
}

// Option configures a DB.
type Option func(*DB)

// WithGrowthStep sets how many slots are added when the arena is full.
func WithGrowthStep(n int) Option {
	return func(db *DB) {
		if n > 0 {
			db.growth = n
		}
	}
}

// WithInitialCapacity sets the starting arena size.
func WithInitialCapacity(n int) Option {
	return func(db *DB) {
		if n >= 0 {
			db.initial = n
		}
	}
}

// WithMaxObjects caps the number of live objects. Zero means the
// identifier space is the only limit.
func WithMaxObjects(n int) Option {
	return func(db *DB) {
		if n >= 0 {
			db.maxObjects = n
		}
	}
}

// WithRand sets the source for random member and name selection.
func WithRand(r *rand.Rand) Option {
	return func(db *DB) {
		db.rng = r
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(db *DB) {
		db.logger = l
	}
}

// New creates an empty database.
func New(opts ...Option) *DB {
	db := &DB{
		locks:   syncreg.New(),
		index:   make(map[uint64][]ID),
		roots:   make(map[ID]struct{}),
		names:   make(map[string]ID),
		pins:    make(map[ID]int),
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		initial: DefaultInitialCapacity,
		growth:  DefaultGrowthStep,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(db)
	}
	db.slots = make([]slot, min(db.initial, db.slotLimit()))

	// A fresh registry cannot already hold the reserved handles.
	_ = db.locks.Register(syncreg.StoreHandle)
	_ = db.locks.Register(syncreg.DirectoryHandle)
	return db
}

func (db *DB) lockStore()    { db.locks.Lock(syncreg.StoreHandle) }
func (db *DB) unlockStore()  { _ = db.locks.Unlock(syncreg.StoreHandle) }
func (db *DB) rlockStore()   { db.locks.RLock(syncreg.StoreHandle) }
func (db *DB) runlockStore() { _ = db.locks.RUnlock(syncreg.StoreHandle) }
func (db *DB) lockDir()      { db.locks.Lock(syncreg.DirectoryHandle) }
func (db *DB) unlockDir()    { _ = db.locks.Unlock(syncreg.DirectoryHandle) }
func (db *DB) rlockDir()     { db.locks.RLock(syncreg.DirectoryHandle) }
func (db *DB) runlockDir()   { _ = db.locks.RUnlock(syncreg.DirectoryHandle) }

func objectHandle(id ID, gen uint32) syncreg.Handle {
	return syncreg.Handle(uint64(gen)<<32 | uint64(id))
}


// nextGen keeps generations in [1, 2^31) so object handles never reach
// the reserved handles or the advisory bit.
func nextGen(g uint32) uint32 {
	g++
	if g >= 1<<31 {
		g = 1
	}
	return g
}

func (db *DB) slotLimit() int {
	if db.maxObjects > 0 && db.maxObjects < maxSlots {
		return db.maxObjects
	}
	return maxSlots
}

func (db *DB) objectLocked(id ID) *Object {
	if int(id) >= len(db.slots) {
		return nil
	}
	return db.slots[id].obj
}

// allocLocked returns the lowest free slot, growing the arena by the
// growth step when every slot is taken. freeHint never exceeds the lowest
// free slot.
func (db *DB) allocLocked() (ID, error) {
	for i := db.freeHint; i < len(db.slots); i++ {
		if db.slots[i].obj == nil {
			db.freeHint = i + 1
			return ID(i), nil
		}
	}

	limit := db.slotLimit()
	if len(db.slots) >= limit {
		return 0, fmt.Errorf("%w: %d objects", ErrArenaFull, db.live)
	}
	next := min(len(db.slots)+db.growth, limit)
	grown := make([]slot, next)
	copy(grown, db.slots)
	id := len(db.slots)
	db.slots = grown
	db.freeHint = id + 1
	db.logger.Debug("object store grown", "capacity", next)
	return ID(id), nil
}

// registerLocked stores obj, or returns the identifier of an equal
// object already stored. created reports whether a new slot was used.
// owner is the registering scope, zero outside one.
func (db *DB) registerLocked(obj *Object, owner uint64) (id ID, created bool, err error) {
	if obj.registered {
		return 0, false, ErrAlreadyRegistered
	}
	if id, ok := db.findLocked(obj); ok {
		if found := db.slots[id].obj; owner == 0 || found.owner != owner {
			found.shared.Store(true)
		}
		return id, false, nil
	}
	obj.owner = owner
	if err := db.insertLocked(obj); err != nil {
		return 0, false, err
	}
	return obj.id, true, nil
}

// insertLocked gives obj a slot and an object lock without looking for
// an equal object.
func (db *DB) insertLocked(obj *Object) error {
	id, err := db.allocLocked()
	if err != nil {
		return err
	}
	s := &db.slots[id]
	gen := nextGen(s.gen)
	h := objectHandle(id, gen)
	if err := db.locks.Register(h); err != nil {
		if int(id) < db.freeHint {
			db.freeHint = int(id)
		}
		return fmt.Errorf("register object %d: %w", id, err)
	}
	s.gen = gen

	obj.id = id
	obj.handle = h
	obj.registered = true
	db.indexAddLocked(obj)
	s.obj = obj
	db.live++
	return nil
}

// promoteLocked turns a stored unbound set into a root. adv is the
// advisory handle to adopt; zero registers a fresh one.
func (db *DB) promoteLocked(obj *Object, adv syncreg.Handle) {
	db.indexRemoveLocked(obj)
	if adv == 0 {
		db.advSeq++
		adv = advisoryBit | syncreg.Handle(db.advSeq)
		_ = db.locks.Register(adv)
	}
	obj.rooted = true
	obj.advisory = adv
	obj.shared.Store(true)
	db.roots[obj.id] = struct{}{}
	db.epoch.Add(1)
}

// releaseLocked empties a slot and retires its locks.
func (db *DB) releaseLocked(id ID) {
	obj := db.objectLocked(id)
	if obj == nil {
		return
	}
	if obj.rooted {
		db.locks.Unregister(obj.advisory)
		delete(db.roots, id)
	} else {
		db.indexRemoveLocked(obj)
	}
	db.locks.Unregister(obj.handle)
	db.slots[id].obj = nil
	db.live--
	if int(id) < db.freeHint {
		db.freeHint = int(id)
	}
}

func (db *DB) indexAddLocked(obj *Object) {
	h := obj.hash()
	db.index[h] = append(db.index[h], obj.id)
}

func (db *DB) indexRemoveLocked(obj *Object) {
	h := obj.hash()
	ids := db.index[h]
	if i := slices.Index(ids, obj.id); i >= 0 {
		ids = slices.Delete(ids, i, i+1)
	}
	if len(ids) == 0 {
		delete(db.index, h)
	} else {
		db.index[h] = ids
	}
}

// findLocked looks up a stored object equal to obj: an unbound one from
// the index, else the lowest-numbered root holding the same members.
func (db *DB) findLocked(obj *Object) (ID, bool) {
	for _, id := range db.index[obj.hash()] {
		if stored := db.slots[id].obj; stored != nil && stored.equal(obj) {
			return id, true
		}
	}
	if obj.kind != KindSet {
		return 0, false
	}
	found, ok := ID(0), false
	for id := range db.roots {
		if ok && id > found {
			continue
		}
		root := db.slots[id].obj
		db.locks.RLock(root.handle)
		same := bitset.Equal(root.set, obj.set)
		_ = db.locks.RUnlock(root.handle)
		if same {
			found, ok = id, true
		}
	}
	return found, ok
}

// snapshotLocked copies obj's value under its read lock when it can
// change.
func (db *DB) snapshotLocked(obj *Object) *Object {
	if obj.rooted {
		db.locks.RLock(obj.handle)
		defer db.locks.RUnlock(obj.handle)
	}
	return obj.clone()
}

// Register stores obj and returns its identifier. If an equal object is
// already stored, a root included, its identifier is returned instead. The store
// takes ownership of obj.
//
// Objects registered outside a Scope are not pinned and are reclaimed by
// the next Collect unless something reachable refers to them.
func (db *DB) Register(obj *Object) (ID, error) {
	db.lockStore()
	defer db.unlockStore()
	id, _, err := db.registerLocked(obj, 0)
	return id, err
}

// Unregister releases an unbound object.
func (db *DB) Unregister(id ID) error {
	db.lockStore()
	defer db.unlockStore()
	obj := db.objectLocked(id)
	if obj == nil {
		return fmt.Errorf("%w: %d", ErrNoSuchObject, id)
	}
	if obj.rooted {
		return fmt.Errorf("unregister %d: %w", id, ErrRooted)
	}
	db.releaseLocked(id)
	return nil
}

// Get returns a copy of the object stored under id.
func (db *DB) Get(id ID) (*Object, error) {
	db.rlockStore()
	defer db.runlockStore()
	obj := db.objectLocked(id)
	if obj == nil {
		return nil, fmt.Errorf("%w: %d", ErrNoSuchObject, id)
	}
	return db.snapshotLocked(obj), nil
}

// Find returns the identifier of a stored object equal to obj.
func (db *DB) Find(obj *Object) (ID, bool) {
	db.rlockStore()
	defer db.runlockStore()
	return db.findLocked(obj)
}

// FindSet returns the identifier of a stored set equal to s.
func (db *DB) FindSet(s *bitset.Set) (ID, bool) {
	return db.Find(NewSet(s))
}

// Stats is a point-in-time summary.
type Stats struct {
	Objects  int
	Sets     int
	Capacity int
	Pinned   int
}

// Stats reports object, name and pin counts.
func (db *DB) Stats() Stats {
	db.rlockStore()
	defer db.runlockStore()
	db.rlockDir()
	defer db.runlockDir()
	db.pinMu.Lock()
	defer db.pinMu.Unlock()
	return Stats{
		Objects:  db.live,
		Sets:     len(db.names),
		Capacity: len(db.slots),
		Pinned:   len(db.pins),
	}
}

func (db *DB) intN(n int) int {
	db.rngMu.Lock()
	defer db.rngMu.Unlock()
	return db.rng.IntN(n)
}

func (db *DB) randomMember(s *bitset.Set) (ID, error) {
	db.rngMu.Lock()
	defer db.rngMu.Unlock()
	return s.Random(db.rng)
}
