package store

import "slices"

// NewTuple creates a tuple of the given elements in order.
func NewTuple(elems ...ID) *Object {
	return &Object{kind: KindTuple, tuple: slices.Clone(elems)}
}

// Tuple returns the elements of a tuple object, or nil for other kinds.
func (o *Object) Tuple() []ID { return o.tuple }

// Len returns the number of tuple elements, or set members for sets.
func (o *Object) Len() int {
	switch o.kind {
	case KindTuple:
		return len(o.tuple)
	case KindSet:
		return o.set.Card()
	default:
		return 0
	}
}
