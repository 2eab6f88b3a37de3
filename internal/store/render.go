package store

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Render formats a stored object:
//
//	{ 1, [ 2, 3 ], { } }
//
// Set members appear in identifier order. A reference back to an object
// being rendered prints as (cycle); an identifier with no object prints
// as (null).
func (db *DB) Render(id ID) (string, error) {
	db.rlockStore()
	defer db.runlockStore()
	if db.objectLocked(id) == nil {
		return "", fmt.Errorf("%w: %d", ErrNoSuchObject, id)
	}
	var b strings.Builder
	db.renderLocked(&b, id, map[ID]bool{})
	return b.String(), nil
}

func (db *DB) renderLocked(b *strings.Builder, id ID, path map[ID]bool) {
	obj := db.objectLocked(id)
	switch {
	case obj == nil:
		b.WriteString("(null)")
		return
	case path[id]:
		b.WriteString("(cycle)")
		return
	case obj.kind == KindScalar:
		b.WriteString(strconv.FormatUint(obj.scalar, 10))
		return
	}

	start, end := "{ ", "}"
	if obj.kind == KindTuple {
		start, end = "[ ", "]"
	}
	path[id] = true
	b.WriteString(start)
	members := db.membersLocked(obj)
	for i, m := range members {
		if i > 0 {
			b.WriteString(", ")
		}
		db.renderLocked(b, m, path)
	}
	if len(members) > 0 {
		b.WriteByte(' ')
	}
	b.WriteString(end)
	delete(path, id)
}

// DumpSets writes every binding as "name = rendering", sorted by name.
func (db *DB) DumpSets(w io.Writer) error {
	db.rlockStore()
	defer db.runlockStore()
	db.rlockDir()
	names := maps.Clone(db.names)
	db.runlockDir()

	if len(names) == 0 {
		_, err := io.WriteString(w, "No sets in db.\n")
		return err
	}
	for _, n := range slices.Sorted(maps.Keys(names)) {
		var b strings.Builder
		db.renderLocked(&b, names[n], map[ID]bool{})
		if _, err := fmt.Fprintf(w, "%s = %s\n", n, b.String()); err != nil {
			return err
		}
	}
	return nil
}

// DumpIndex writes every stored object in identifier order. Bound sets
// are listed with kind "root".
func (db *DB) DumpIndex(w io.Writer) error {
	db.rlockStore()
	defer db.runlockStore()

	if _, err := fmt.Fprintf(w, "Object index dump. Total: %d\n", db.live); err != nil {
		return err
	}
	for i, s := range db.slots {
		if s.obj == nil {
			continue
		}
		kind := s.obj.kind.String()
		if s.obj.rooted {
			kind = "root"
		}
		var b strings.Builder
		db.renderLocked(&b, ID(i), map[ID]bool{})
		if _, err := fmt.Fprintf(w, "%10d: %s = %s\n", i, kind, b.String()); err != nil {
			return err
		}
	}
	return nil
}
