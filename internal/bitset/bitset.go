package bitset

import (
	"encoding/binary"
	"errors"
	"iter"
	"math/bits"
	"math/rand/v2"

	"github.com/cespare/xxhash/v2"
)

// ID identifies an object in the store. Sets hold IDs, never values.
type ID uint32

// ErrEmpty is returned when an operation needs at least one member.
var ErrEmpty = errors.New("set is empty")

const wordBits = 64

// Set is a growable bitmap of member identifiers with a maintained
// cardinality.
//
// The zero value is an empty set ready to use. Set is not safe for
// concurrent use; callers serialize access through the object lock that
// owns the set.
type Set struct {
	words []uint64
	card  int
}

// New creates an empty set.
func New() *Set {
	return &Set{}
}

// Of creates a set holding the given members.
func Of(ids ...ID) *Set {
	s := New()
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Clone returns an independent copy of s.
func (s *Set) Clone() *Set {
	c := &Set{card: s.card}
	if len(s.words) > 0 {
		c.words = make([]uint64, len(s.words))
		copy(c.words, s.words)
	}
	return c
}

func position(id ID) (int, uint64) {
	return int(id / wordBits), uint64(1) << (id % wordBits)
}

// Add inserts id, growing the bitmap as needed. It reports whether the
// set changed.
func (s *Set) Add(id ID) bool {
	w, mask := position(id)
	if w >= len(s.words) {
		grown := make([]uint64, w+1)
		copy(grown, s.words)
		s.words = grown
	}
	if s.words[w]&mask != 0 {
		return false
	}
	s.words[w] |= mask
	s.card++
	return true
}

// Remove deletes id. It reports whether the set changed.
func (s *Set) Remove(id ID) bool {
	w, mask := position(id)
	if w >= len(s.words) || s.words[w]&mask == 0 {
		return false
	}
	s.words[w] &^= mask
	s.card--
	return true
}

// Contains reports whether id is a member. IDs beyond the bitmap are
// never members.
func (s *Set) Contains(id ID) bool {
	w, mask := position(id)
	return w < len(s.words) && s.words[w]&mask != 0
}

// Card returns the number of members.
func (s *Set) Card() int {
	return s.card
}

// IsEmpty reports whether the set has no members.
func (s *Set) IsEmpty() bool {
	return s.card == 0
}

// Words returns the length of the backing bitmap in 64-bit words.
func (s *Set) Words() int {
	return len(s.words)
}

func count(words []uint64) int {
	n := 0
	for _, w := range words {
		n += bits.OnesCount64(w)
	}
	return n
}

// Union returns a ∪ b. The result is as long as the longer operand.
func Union(a, b *Set) *Set {
	long, short := a, b
	if len(short.words) > len(long.words) {
		long, short = short, long
	}
	out := long.Clone()
	for i, w := range short.words {
		out.words[i] |= w
	}
	out.card = count(out.words)
	return out
}

// Intersect returns a ∩ b. The result is as long as the shorter operand.
func Intersect(a, b *Set) *Set {
	n := min(len(a.words), len(b.words))
	out := &Set{words: make([]uint64, n)}
	for i := range n {
		out.words[i] = a.words[i] & b.words[i]
	}
	out.card = count(out.words)
	return out
}

// Difference returns a − b. Members of a beyond the length of b are
// always kept.
func Difference(a, b *Set) *Set {
	out := a.Clone()
	n := min(len(a.words), len(b.words))
	for i := range n {
		out.words[i] &^= b.words[i]
	}
	out.card = count(out.words)
	return out
}

// SymmetricDifference returns (a − b) ∪ (b − a).
func SymmetricDifference(a, b *Set) *Set {
	return Union(Difference(a, b), Difference(b, a))
}

// UnionWith adds every member of o to s in place.
func (s *Set) UnionWith(o *Set) {
	if len(o.words) > len(s.words) {
		grown := make([]uint64, len(o.words))
		copy(grown, s.words)
		s.words = grown
	}
	for i, w := range o.words {
		s.words[i] |= w
	}
	s.card = count(s.words)
}

// Equal reports whether a and b have the same members. Trailing empty
// words are ignored.
func Equal(a, b *Set) bool {
	if a.card != b.card {
		return false
	}
	long, short := a.words, b.words
	if len(short) > len(long) {
		long, short = short, long
	}
	for i, w := range short {
		if long[i] != w {
			return false
		}
	}
	for _, w := range long[len(short):] {
		if w != 0 {
			return false
		}
	}
	return true
}

// IsSubset reports whether every member of a is a member of b. Equal sets
// are subsets of each other.
func IsSubset(a, b *Set) bool {
	n := min(len(a.words), len(b.words))
	shared := 0
	for i := range n {
		shared += bits.OnesCount64(a.words[i] & b.words[i])
	}
	return shared == a.card
}

// IsSubsetOrEqual reports IsSubset(a, b) || Equal(a, b).
func IsSubsetOrEqual(a, b *Set) bool {
	return IsSubset(a, b) || Equal(a, b)
}

// All iterates members in ascending order.
func (s *Set) All() iter.Seq[ID] {
	return func(yield func(ID) bool) {
		for i, w := range s.words {
			for w != 0 {
				bit := bits.TrailingZeros64(w)
				if !yield(ID(i*wordBits + bit)) {
					return
				}
				w &= w - 1
			}
		}
	}
}

// Members returns the members in ascending order.
func (s *Set) Members() []ID {
	out := make([]ID, 0, s.card)
	for id := range s.All() {
		out = append(out, id)
	}
	return out
}

// Random returns a member chosen uniformly at random.
func (s *Set) Random(r *rand.Rand) (ID, error) {
	if s.card == 0 {
		return 0, ErrEmpty
	}
	k := r.IntN(s.card)
	for id := range s.All() {
		if k == 0 {
			return id, nil
		}
		k--
	}
	// card and the bitmap disagree; unreachable while Add/Remove maintain card.
	return 0, ErrEmpty
}

// Truncate drops trailing empty words from the bitmap and returns the
// number of bytes reclaimed. Membership is unchanged.
func (s *Set) Truncate() int {
	n := len(s.words)
	for n > 0 && s.words[n-1] == 0 {
		n--
	}
	freed := (len(s.words) - n) * 8
	if freed == 0 {
		return 0
	}
	if n == 0 {
		s.words = nil
	} else {
		shrunk := make([]uint64, n)
		copy(shrunk, s.words[:n])
		s.words = shrunk
	}
	return freed
}

// Hash returns a content hash that is independent of trailing empty
// words, so equal sets hash equally.
func (s *Set) Hash() uint64 {
	n := len(s.words)
	for n > 0 && s.words[n-1] == 0 {
		n--
	}
	buf := make([]byte, 0, n*8)
	for _, w := range s.words[:n] {
		buf = binary.LittleEndian.AppendUint64(buf, w)
	}
	return xxhash.Sum64(buf)
}
