package store

import (
	"errors"
	"fmt"

	"github.com/roach88/athena/internal/bitset"
)

// Argument errors.
var (
	ErrBadName = errors.New("bad set name")
)

// Lookup errors.
var (
	ErrNoSuchSet    = errors.New("set doesn't exist")
	ErrSetExists    = errors.New("set already exists")
	ErrNoSets       = errors.New("no sets in db")
	ErrNoSuchObject = errors.New("no such object")
	ErrNotMember    = errors.New("not a member")
	ErrNotLocked    = errors.New("set is not locked")
)

// Type errors.
var (
	ErrWrongType = errors.New("wrong type")
	ErrEmptySet  = bitset.ErrEmpty
)

// Resource errors.
var (
	ErrArenaFull      = errors.New("object store is full")
	ErrResultTooLarge = errors.New("result too large")
)

// State errors.
var (
	ErrRooted            = errors.New("object is bound to a name")
	ErrAlreadyRegistered = errors.New("object already registered")
)

// TypeError reports an operand of the wrong kind. It matches ErrWrongType
// with errors.Is.
type TypeError struct {
	Operand string // "left", "right", "operand" or "initializer"
	Want    Kind
	Got     Kind
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("wrong type for %s: expected %s, got %s", e.Operand, e.Want, e.Got)
}

func (e *TypeError) Unwrap() error {
	return ErrWrongType
}

// IsLookupError reports whether err names something that does not exist
// or already exists.
func IsLookupError(err error) bool {
	return errors.Is(err, ErrNoSuchSet) ||
		errors.Is(err, ErrSetExists) ||
		errors.Is(err, ErrNoSets) ||
		errors.Is(err, ErrNoSuchObject) ||
		errors.Is(err, ErrNotMember) ||
		errors.Is(err, ErrNotLocked)
}

// IsTypeError reports whether err is a type or emptiness error.
func IsTypeError(err error) bool {
	return errors.Is(err, ErrWrongType) || errors.Is(err, ErrEmptySet)
}

// IsResourceError reports whether err is a capacity failure.
func IsResourceError(err error) bool {
	return errors.Is(err, ErrArenaFull) || errors.Is(err, ErrResultTooLarge)
}
