package command

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/roach88/athena/internal/store"
)

type argKind uint8

const (
	argName argKind = iota + 1 // one word, the set name
	argExpr                    // set-algebra expression
)

// arg is one parsed argument. For expressions id is the evaluated value,
// pinned in the command's scope.
type arg struct {
	text string
	id   store.ID
}

// splitCommand separates the command word from the rest of the line.
func splitCommand(line string) (name, rest string) {
	line = strings.TrimSpace(line)
	i := strings.IndexFunc(line, unicode.IsSpace)
	if i < 0 {
		return line, ""
	}
	return line[:i], line[i:]
}

func skipSpace(s string, pos int) int {
	for pos < len(s) {
		r, size := utf8.DecodeRuneInString(s[pos:])
		if !unicode.IsSpace(r) {
			break
		}
		pos += size
	}
	return pos
}

// parseArgs reads c's arguments from rest.
//
// A name is one word. An expression runs until a complete expression is
// followed by the start of another operand. The last argument takes the
// rest of the line. Expressions are evaluated as they are read, in sc.
func (d *Dispatcher) parseArgs(sc *store.Scope, c *command, rest string) ([]arg, error) {
	args := make([]arg, 0, len(c.args))
	pos := 0
	for i, kind := range c.args {
		pos = skipSpace(rest, pos)
		if pos == len(rest) {
			if i >= c.minArgs {
				break
			}
			return nil, arityError(c)
		}
		last := i == len(c.args)-1
		start := pos

		var a arg
		switch kind {
		case argName:
			if last {
				pos = len(rest)
			} else if j := strings.IndexFunc(rest[pos:], unicode.IsSpace); j >= 0 {
				pos += j
			} else {
				pos = len(rest)
			}
		case argExpr:
			var (
				id  store.ID
				err error
			)
			if last {
				id, err = d.ev.EvaluateAll(sc, rest[pos:])
				pos = len(rest)
			} else {
				id, err = d.ev.Evaluate(sc, rest, &pos)
			}
			if err != nil {
				return nil, err
			}
			a.id = id
		}
		a.text = strings.TrimSpace(rest[start:pos])
		args = append(args, a)
	}
	if strings.TrimSpace(rest[pos:]) != "" {
		return nil, arityError(c)
	}
	return args, nil
}
