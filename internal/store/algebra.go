package store

import (
	"errors"
	"fmt"

	"github.com/roach88/athena/internal/bitset"
)

// BinaryOp is a set operator taking two set operands.
type BinaryOp uint8

const (
	Union BinaryOp = iota + 1
	Intersect
	Difference
	SymmetricDifference
	Product
)

func (op BinaryOp) String() string {
	switch op {
	case Union:
		return "union"
	case Intersect:
		return "intersect"
	case Difference:
		return "difference"
	case SymmetricDifference:
		return "symmetric difference"
	case Product:
		return "product"
	default:
		return "unknown"
	}
}

const (
	// MaxPowersetCard is the largest set whose powerset one command may
	// materialize.
	MaxPowersetCard = 20

	// MaxBatchObjects caps how many objects one operation may register.
	MaxBatchObjects = 1 << 22
)

// setValueLocked returns a copy of the members of the set stored under
// id.
func (db *DB) setValueLocked(id ID, operand string) (*bitset.Set, error) {
	obj := db.objectLocked(id)
	if obj == nil {
		return nil, fmt.Errorf("%s: %w: %d", operand, ErrNoSuchObject, id)
	}
	if obj.kind != KindSet {
		return nil, &TypeError{Operand: operand, Want: KindSet, Got: obj.kind}
	}
	return db.snapshotLocked(obj).set, nil
}

// operands fetches both set operands. When both are unusable the
// returned error reports both.
func (db *DB) operands(a, b ID) (*bitset.Set, *bitset.Set, error) {
	db.rlockStore()
	defer db.runlockStore()
	left, errL := db.setValueLocked(a, "left")
	right, errR := db.setValueLocked(b, "right")
	if err := errors.Join(errL, errR); err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

func (db *DB) setValue(id ID, operand string) (*bitset.Set, error) {
	db.rlockStore()
	defer db.runlockStore()
	return db.setValueLocked(id, operand)
}

// reserve fails when n more objects exceed the per-operation cap or could
// not fit in the arena.
func (db *DB) reserve(n int) error {
	if n > MaxBatchObjects {
		return fmt.Errorf("%w: %d objects, at most %d", ErrResultTooLarge, n, MaxBatchObjects)
	}
	db.rlockStore()
	defer db.runlockStore()
	if limit := db.slotLimit(); n > limit-db.live {
		return fmt.Errorf("%w: need %d more objects, %d live of %d", ErrArenaFull, n, db.live, limit)
	}
	return nil
}

// Combine applies op to two stored sets and registers the result.
func (sc *Scope) Combine(op BinaryOp, a, b ID) (ID, error) {
	left, right, err := sc.db.operands(a, b)
	if err != nil {
		return 0, err
	}
	var out *bitset.Set
	switch op {
	case Union:
		out = bitset.Union(left, right)
	case Intersect:
		out = bitset.Intersect(left, right)
	case Difference:
		out = bitset.Difference(left, right)
	case SymmetricDifference:
		out = bitset.SymmetricDifference(left, right)
	case Product:
		return sc.product(left, right)
	default:
		return 0, fmt.Errorf("unknown set operator %d", op)
	}
	return sc.Register(NewSet(out))
}

// product registers one pair tuple per element of a × b and then the set
// of those tuples.
func (sc *Scope) product(a, b *bitset.Set) (ID, error) {
	if n := a.Card(); n > 0 && b.Card() > MaxBatchObjects/n {
		return 0, fmt.Errorf("product: %w: %d × %d pairs", ErrResultTooLarge, n, b.Card())
	}
	if err := sc.db.reserve(a.Card()*b.Card() + 1); err != nil {
		return 0, fmt.Errorf("product: %w", err)
	}
	left, right := a.Members(), b.Members()
	pairs := make([]*Object, 0, len(left)*len(right))
	for _, x := range left {
		for _, y := range right {
			pairs = append(pairs, NewTuple(x, y))
		}
	}
	ids, err := sc.RegisterAll(pairs)
	if err != nil {
		return 0, fmt.Errorf("product: %w", err)
	}
	return sc.Register(NewSet(bitset.Of(ids...)))
}

// Powerset registers every subset of the set stored under a and then the
// set of those subsets.
//
// Subset i holds member k (in ascending identifier order) exactly when
// bit k of i is set, so subset 0 is empty and subset 2^n-1 is the whole
// set.
func (sc *Scope) Powerset(a ID) (ID, error) {
	set, err := sc.db.setValue(a, "operand")
	if err != nil {
		return 0, err
	}
	n := set.Card()
	if n > MaxPowersetCard {
		return 0, fmt.Errorf("powerset of %d members: %w", n, ErrResultTooLarge)
	}
	total := 1 << n
	if err := sc.db.reserve(total + 1); err != nil {
		return 0, fmt.Errorf("powerset: %w", err)
	}

	members := set.Members()
	subsets := make([]*Object, total)
	for i := range total {
		s := bitset.New()
		for k, m := range members {
			if i&(1<<k) != 0 {
				s.Add(m)
			}
		}
		subsets[i] = NewSet(s)
	}
	ids, err := sc.RegisterAll(subsets)
	if err != nil {
		return 0, fmt.Errorf("powerset: %w", err)
	}
	return sc.Register(NewSet(bitset.Of(ids...)))
}

// Equal reports whether two stored objects have the same value.
func (db *DB) Equal(a, b ID) (bool, error) {
	db.rlockStore()
	defer db.runlockStore()
	left, right := db.objectLocked(a), db.objectLocked(b)
	if left == nil || right == nil {
		missing := a
		if left != nil {
			missing = b
		}
		return false, fmt.Errorf("%w: %d", ErrNoSuchObject, missing)
	}
	if a == b {
		return true, nil
	}
	return db.snapshotLocked(left).equal(db.snapshotLocked(right)), nil
}

// IsSubset reports whether every member of set a is in set b.
func (db *DB) IsSubset(a, b ID) (bool, error) {
	left, right, err := db.operands(a, b)
	if err != nil {
		return false, err
	}
	return bitset.IsSubset(left, right), nil
}

// IsSubsetOrEqual reports IsSubset(a, b) || Equal(a, b) for sets.
func (db *DB) IsSubsetOrEqual(a, b ID) (bool, error) {
	left, right, err := db.operands(a, b)
	if err != nil {
		return false, err
	}
	return bitset.IsSubsetOrEqual(left, right), nil
}

// Card returns the cardinality of a stored set.
func (db *DB) Card(id ID) (int, error) {
	s, err := db.setValue(id, "operand")
	if err != nil {
		return 0, err
	}
	return s.Card(), nil
}
