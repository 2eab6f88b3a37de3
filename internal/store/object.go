package store

import (
	"encoding/binary"
	"slices"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/roach88/athena/internal/bitset"
	"github.com/roach88/athena/internal/syncreg"
)

// ID identifies a registered object.
type ID = bitset.ID

// Kind discriminates the object variants.
type Kind uint8

const (
	KindSet Kind = iota + 1
	KindTuple
	KindScalar
)

func (k Kind) String() string {
	switch k {
	case KindSet:
		return "set"
	case KindTuple:
		return "tuple"
	case KindScalar:
		return "scalar"
	default:
		return "unknown"
	}
}

// Object is a set, a tuple or a scalar.
//
// Objects handed to Register become owned by the store and must not be
// modified afterwards. Unbound objects are immutable once registered;
// only sets bound to a name (roots) change, under their object lock.
type Object struct {
	kind   Kind
	set    *bitset.Set
	tuple  []ID
	scalar uint64

	id         ID
	handle     syncreg.Handle
	rooted     bool
	registered bool

	// advisory is the LOCK/UNLOCK handle while the object is a root. It
	// moves to the new root when a name is rebound.
	advisory syncreg.Handle

	// owner is the scope that created the object. shared is set once
	// anything else obtains its identifier.
	owner  uint64
	shared atomic.Bool
}

// NewSet wraps s as a set object. A nil s yields the empty set.
func NewSet(s *bitset.Set) *Object {
	if s == nil {
		s = bitset.New()
	}
	return &Object{kind: KindSet, set: s}
}

// NewScalar creates a scalar object.
func NewScalar(v uint64) *Object {
	return &Object{kind: KindScalar, scalar: v}
}

// Kind returns the variant.
func (o *Object) Kind() Kind { return o.kind }

// Set returns the members of a set object, or nil for other kinds.
func (o *Object) Set() *bitset.Set { return o.set }

// Scalar returns the value of a scalar object.
func (o *Object) Scalar() uint64 { return o.scalar }

// ID returns the identifier assigned at registration.
func (o *Object) ID() ID { return o.id }

// Rooted reports whether the object is bound to a name.
func (o *Object) Rooted() bool { return o.rooted }

// clone copies the value and identity. The copy is not registered.
func (o *Object) clone() *Object {
	c := &Object{kind: o.kind, scalar: o.scalar, id: o.id, rooted: o.rooted}
	if o.set != nil {
		c.set = o.set.Clone()
	}
	if o.tuple != nil {
		c.tuple = slices.Clone(o.tuple)
	}
	return c
}

// equal reports value equality. Members are compared by identifier.
func (o *Object) equal(p *Object) bool {
	if o.kind != p.kind {
		return false
	}
	switch o.kind {
	case KindSet:
		return bitset.Equal(o.set, p.set)
	case KindTuple:
		return slices.Equal(o.tuple, p.tuple)
	default:
		return o.scalar == p.scalar
	}
}

func (o *Object) hash() uint64 {
	buf := []byte{byte(o.kind)}
	switch o.kind {
	case KindSet:
		buf = binary.LittleEndian.AppendUint64(buf, o.set.Hash())
	case KindTuple:
		for _, id := range o.tuple {
			buf = binary.LittleEndian.AppendUint32(buf, uint32(id))
		}
	default:
		buf = binary.LittleEndian.AppendUint64(buf, o.scalar)
	}
	return xxhash.Sum64(buf)
}

// members lists the identifiers an object refers to.
func (o *Object) members() []ID {
	switch o.kind {
	case KindSet:
		return o.set.Members()
	case KindTuple:
		return slices.Clone(o.tuple)
	default:
		return nil
	}
}
