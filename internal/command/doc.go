// Package command implements the athena text protocol on top of the store
// and the evaluator.
//
// A command line is a case-insensitive command word followed by its
// arguments. Names are single words; expressions are read by the
// evaluator, which stops where one complete expression is followed by
// the start of another, so
//
//	EQ {1, 2} {2, 1}
//
// has two arguments. The last argument always takes the rest of the line.
//
// Each command runs in its own store.Scope. A failed command rolls the
// scope back, so nothing it registered survives.
package command
