// Package bitset implements the set value type: a growable bitmap of
// member identifiers with set algebra, comparisons, uniform random
// selection and storage compaction.
//
// Members are object identifiers, not values. Two sets that contain the
// same identifiers are equal regardless of bitmap length.
package bitset
