package command

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/roach88/athena/internal/eval"
	"github.com/roach88/athena/internal/store"
)

// Dispatch errors. Errors from the store and the evaluator are passed
// through unchanged.
var (
	ErrEmptyCommand   = errors.New("empty command")
	ErrUnknownCommand = errors.New("unknown command")
	ErrArity          = errors.New("wrong number of arguments")
	ErrAlreadyLocked  = errors.New("set is already locked by this session")
)

// arityError reports how many arguments cmd takes.
func arityError(c *command) error {
	switch {
	case len(c.args) == 0:
		return fmt.Errorf("%w: %s expects no arguments", ErrArity, c.name)
	case c.minArgs == len(c.args):
		return fmt.Errorf("%w: %s expects %d", ErrArity, c.name, len(c.args))
	default:
		return fmt.Errorf("%w: %s expects %d to %d", ErrArity, c.name, c.minArgs, len(c.args))
	}
}

// Error classes reported to the Observer and in logs.
const (
	ClassArgument = "argument"
	ClassLookup   = "lookup"
	ClassType     = "type"
	ClassResource = "resource"
	ClassSyntax   = "syntax"
	ClassInternal = "internal"
)

// errorClass sorts a command failure into the error taxonomy.
func errorClass(err error) string {
	switch {
	case errors.Is(err, ErrEmptyCommand), errors.Is(err, ErrUnknownCommand),
		errors.Is(err, ErrArity), errors.Is(err, ErrAlreadyLocked),
		errors.Is(err, store.ErrBadName):
		return ClassArgument
	case eval.IsSyntaxError(err):
		return ClassSyntax
	case store.IsResourceError(err), eval.IsLimitError(err):
		return ClassResource
	case store.IsTypeError(err):
		return ClassType
	case store.IsLookupError(err):
		return ClassLookup
	default:
		return ClassInternal
	}
}

// errorText renders err as a one-line protocol reply:
//
//	ERROR: Set doesn't exist: A.
func errorText(err error) string {
	msg := strings.Join(strings.Fields(err.Error()), " ")
	msg = strings.TrimRight(msg, ".")
	if r, size := utf8.DecodeRuneInString(msg); r != utf8.RuneError {
		msg = string(unicode.ToUpper(r)) + msg[size:]
	}
	return "ERROR: " + msg + "."
}
