package store

import (
	"fmt"
	"maps"
	"slices"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/athena/internal/bitset"
	"github.com/roach88/athena/internal/syncreg"
)

// ValidName reports whether name can be used as a set name: a letter
// followed by letters, digits or combining marks. Names are compared
// after NFC normalization.
func ValidName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		if i == 0 {
			if !unicode.IsLetter(r) {
				return false
			}
			continue
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsMark(r) {
			return false
		}
	}
	return true
}

// NormalizeName returns the canonical form under which name is stored.
func NormalizeName(name string) (string, error) {
	n := norm.NFC.String(name)
	if !ValidName(n) {
		return "", fmt.Errorf("%w: %q", ErrBadName, name)
	}
	return n, nil
}

// Lookup returns the identifier of the set bound to name.
func (db *DB) Lookup(name string) (ID, error) {
	n, err := NormalizeName(name)
	if err != nil {
		return 0, err
	}
	db.rlockDir()
	defer db.runlockDir()
	id, ok := db.names[n]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNoSuchSet, n)
	}
	return id, nil
}

// Exists reports whether name is bound. Invalid names are never bound.
func (db *DB) Exists(name string) bool {
	_, err := db.Lookup(name)
	return err == nil
}

// Create binds name to a new empty set.
func (db *DB) Create(name string) (ID, error) {
	n, err := NormalizeName(name)
	if err != nil {
		return 0, err
	}
	db.lockStore()
	defer db.unlockStore()
	db.lockDir()
	defer db.unlockDir()

	if _, ok := db.names[n]; ok {
		return 0, fmt.Errorf("%w: %s", ErrSetExists, n)
	}
	root := NewSet(bitset.New())
	if err := db.insertLocked(root); err != nil {
		return 0, fmt.Errorf("create %s: %w", n, err)
	}
	db.promoteLocked(root, 0)
	db.names[n] = root.id
	return root.id, nil
}

// Bind makes name hold the set stored under src. An unbound src becomes
// the root itself; a src that is already another name's root is copied.
// Rebinding an existing name unbinds its previous root, which keeps its
// value, and hands over the advisory lock.
func (db *DB) Bind(name string, src ID) error {
	n, err := NormalizeName(name)
	if err != nil {
		return err
	}
	db.lockStore()
	defer db.unlockStore()
	db.lockDir()
	defer db.unlockDir()

	srcObj := db.objectLocked(src)
	if srcObj == nil {
		return fmt.Errorf("%w: %d", ErrNoSuchObject, src)
	}
	if srcObj.kind != KindSet {
		return &TypeError{Operand: "initializer", Want: KindSet, Got: srcObj.kind}
	}

	old, bound := db.names[n]
	if bound && old == src {
		return nil
	}
	root := srcObj
	if srcObj.rooted {
		root = NewSet(db.snapshotLocked(srcObj).set)
		if err := db.insertLocked(root); err != nil {
			return fmt.Errorf("bind %s: %w", n, err)
		}
	}

	var adv syncreg.Handle
	if bound {
		adv = db.demoteLocked(old)
	}
	db.promoteLocked(root, adv)
	db.names[n] = root.id
	return nil
}

// demoteLocked unbinds a root and returns its advisory handle, which the
// caller either hands to a new root or unregisters. The object stays in
// the arena, findable again, until the collector finds it unreachable.
func (db *DB) demoteLocked(id ID) syncreg.Handle {
	obj := db.slots[id].obj
	db.locks.Lock(obj.handle)
	obj.rooted = false
	_ = db.locks.Unlock(obj.handle)

	adv := obj.advisory
	obj.advisory = 0
	delete(db.roots, id)
	db.indexAddLocked(obj)
	return adv
}

// Remove unbinds name.
func (db *DB) Remove(name string) error {
	n, err := NormalizeName(name)
	if err != nil {
		return err
	}
	db.lockStore()
	defer db.unlockStore()
	db.lockDir()
	defer db.unlockDir()

	id, ok := db.names[n]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchSet, n)
	}
	db.locks.Unregister(db.demoteLocked(id))
	delete(db.names, n)
	return nil
}

// Rename moves a binding to a new name. The set keeps its identity.
func (db *DB) Rename(from, to string) error {
	f, err := NormalizeName(from)
	if err != nil {
		return err
	}
	t, err := NormalizeName(to)
	if err != nil {
		return err
	}
	db.lockDir()
	defer db.unlockDir()

	id, ok := db.names[f]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchSet, f)
	}
	if f == t {
		return nil
	}
	if _, taken := db.names[t]; taken {
		return fmt.Errorf("%w: %s", ErrSetExists, t)
	}
	delete(db.names, f)
	db.names[t] = id
	return nil
}

// Names returns the bound names in sorted order.
func (db *DB) Names() []string {
	db.rlockDir()
	defer db.runlockDir()
	return slices.Sorted(maps.Keys(db.names))
}

// RandomName returns a bound name chosen uniformly at random.
func (db *DB) RandomName() (string, error) {
	names := db.Names()
	if len(names) == 0 {
		return "", ErrNoSets
	}
	return names[db.intN(len(names))], nil
}

// FlushAll unbinds every name and returns how many were bound. The sets
// become garbage for the next collection.
func (db *DB) FlushAll() int {
	db.lockStore()
	defer db.unlockStore()
	db.lockDir()
	defer db.unlockDir()

	n := len(db.names)
	for _, id := range db.names {
		db.locks.Unregister(db.demoteLocked(id))
	}
	clear(db.names)
	db.logger.Info("directory flushed", "sets", n)
	return n
}
