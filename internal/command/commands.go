package command

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/athena/internal/bitset"
	"github.com/roach88/athena/internal/store"
)

type command struct {
	name     string
	args     []argKind
	optional int // trailing arguments that may be omitted
	minArgs  int
	status   Status // reply status on success; empty means StatusOK
	run      func(r *request) (string, error)
}

// request is one command invocation with its parsed arguments.
type request struct {
	d    *Dispatcher
	sc   *store.Scope
	sess *Session
	args []arg
}

func (r *request) text(i int) string { return r.args[i].text }
func (r *request) value(i int) store.ID { return r.args[i].id }

func (r *request) render(id store.ID) (string, error) {
	return r.d.db.Render(id)
}

const (
	replyOK   = "OK."
	replyPong = "PONG."
	replyBye  = "Bye."
)

func boolReply(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

var commands = map[string]*command{}

func register(c *command) {
	c.minArgs = len(c.args) - c.optional
	commands[c.name] = c
}

func init() {
	register(&command{name: "SET", args: []argKind{argName, argExpr}, optional: 1, run: cmdSet})
	register(&command{name: "DEL", args: []argKind{argName}, run: cmdDel})
	register(&command{name: "EXISTS", args: []argKind{argName}, run: cmdExists})
	register(&command{name: "CONTAINS", args: []argKind{argName, argExpr}, run: cmdContains})
	register(&command{name: "RENAME", args: []argKind{argName, argName}, run: cmdRename})
	register(&command{name: "RANDSET", run: cmdRandSet})
	register(&command{name: "RAND", args: []argKind{argName}, run: cmdRand})
	register(&command{name: "EVAL", args: []argKind{argExpr}, run: cmdEval})
	register(&command{name: "ADD", args: []argKind{argName, argExpr}, run: cmdAdd})
	register(&command{name: "REM", args: []argKind{argName, argExpr}, run: cmdRem})
	register(&command{name: "CARD", args: []argKind{argExpr}, run: cmdCard})
	register(&command{name: "MOV", args: []argKind{argName, argName, argExpr}, run: cmdMove})
	register(&command{name: "POP", args: []argKind{argName}, run: cmdPop})
	register(&command{name: "LOCK", args: []argKind{argName}, run: cmdLock})
	register(&command{name: "UNLOCK", args: []argKind{argName}, run: cmdUnlock})
	register(&command{name: "PING", run: fixed(replyPong)})
	register(&command{name: "QUIT", status: StatusQuit, run: fixed(replyBye)})
	register(&command{name: "SHUTDOWN", status: StatusShutdown, run: fixed(replyBye)})
	register(&command{name: "FLUSHALL", run: cmdFlushAll})
	register(&command{name: "GC", run: cmdCollect})
	register(&command{name: "TRUNC", run: cmdTruncate})
	register(&command{name: "INDEX", run: cmdIndex})
	register(&command{name: "SETS", run: cmdSets})
	register(&command{name: "EQ", args: []argKind{argExpr, argExpr}, run: compare((*store.DB).Equal)})
	register(&command{name: "SUBE", args: []argKind{argExpr, argExpr}, run: compare((*store.DB).IsSubsetOrEqual)})
	register(&command{name: "SUB", args: []argKind{argExpr, argExpr}, run: compare((*store.DB).IsSubset)})
}

// Names returns every command name in sorted order.
func Names() []string {
	return slices.Sorted(maps.Keys(commands))
}

func fixed(text string) func(*request) (string, error) {
	return func(*request) (string, error) { return text, nil }
}

func cmdSet(r *request) (string, error) {
	var value store.ID
	if len(r.args) > 1 {
		value = r.value(1)
	} else {
		id, err := r.sc.Register(store.NewSet(bitset.New()))
		if err != nil {
			return "", err
		}
		value = id
	}
	if err := r.d.db.Bind(r.text(0), value); err != nil {
		return "", err
	}
	return replyOK, nil
}

func cmdDel(r *request) (string, error) {
	if err := r.d.db.Remove(r.text(0)); err != nil {
		return "", err
	}
	return replyOK, nil
}

func cmdExists(r *request) (string, error) {
	if !store.ValidName(r.text(0)) {
		return "", fmt.Errorf("%w: %q", store.ErrBadName, r.text(0))
	}
	return boolReply(r.d.db.Exists(r.text(0))), nil
}

func cmdContains(r *request) (string, error) {
	found, err := r.d.db.ContainsMember(r.text(0), r.value(1))
	if errors.Is(err, store.ErrNoSuchSet) {
		return boolReply(false), nil
	}
	if err != nil {
		return "", err
	}
	return boolReply(found), nil
}

func cmdRename(r *request) (string, error) {
	if err := r.d.db.Rename(r.text(0), r.text(1)); err != nil {
		return "", err
	}
	return replyOK, nil
}

func cmdRandSet(r *request) (string, error) {
	name, err := r.d.db.RandomName()
	if errors.Is(err, store.ErrNoSets) {
		return "No sets in db.", nil
	}
	if err != nil {
		return "", err
	}
	id, err := r.sc.Resolve(name)
	if err != nil {
		return "", err
	}
	out, err := r.render(id)
	if err != nil {
		return "", err
	}
	return name + "\n" + out, nil
}

func cmdRand(r *request) (string, error) {
	id, err := r.d.db.RandomMember(r.sc, r.text(0))
	if err != nil {
		return "", err
	}
	return r.render(id)
}

func cmdEval(r *request) (string, error) {
	return r.render(r.value(0))
}

func cmdAdd(r *request) (string, error) {
	if _, err := r.d.db.AddMember(r.text(0), r.value(1)); err != nil {
		return "", err
	}
	return replyOK, nil
}

func cmdRem(r *request) (string, error) {
	if _, err := r.d.db.RemoveMember(r.text(0), r.value(1)); err != nil {
		return "", err
	}
	return replyOK, nil
}

func cmdCard(r *request) (string, error) {
	n, err := r.d.db.Card(r.value(0))
	if err != nil {
		return "", err
	}
	return strconv.Itoa(n), nil
}

func cmdMove(r *request) (string, error) {
	if err := r.d.db.MoveMember(r.text(0), r.text(1), r.value(2)); err != nil {
		return "", err
	}
	return replyOK, nil
}

func cmdPop(r *request) (string, error) {
	id, err := r.d.db.PopMember(r.sc, r.text(0))
	if err != nil {
		return "", err
	}
	return r.render(id)
}

func cmdLock(r *request) (string, error) {
	h, err := r.d.db.AdvisoryHandle(r.text(0))
	if err != nil {
		return "", err
	}
	if r.sess.holds(h) {
		return "", fmt.Errorf("%w: %s", ErrAlreadyLocked, r.text(0))
	}
	if h, err = r.d.db.LockName(r.text(0)); err != nil {
		return "", err
	}
	r.sess.hold(h, r.text(0))
	return replyOK, nil
}

func cmdUnlock(r *request) (string, error) {
	h, err := r.d.db.AdvisoryHandle(r.text(0))
	if err != nil {
		return "", err
	}
	if !r.sess.holds(h) {
		return "", fmt.Errorf("%w: %s", store.ErrNotLocked, r.text(0))
	}
	r.sess.drop(h)
	if err := r.d.db.UnlockHandle(h); err != nil {
		return "", err
	}
	return replyOK, nil
}

func cmdFlushAll(r *request) (string, error) {
	r.d.db.FlushAll()
	return replyOK, nil
}

func cmdCollect(r *request) (string, error) {
	n := r.d.db.Collect()
	if r.d.observer != nil {
		r.d.observer.ObserveCollect(n)
	}
	return fmt.Sprintf("Collected %d.", n), nil
}

func cmdTruncate(r *request) (string, error) {
	return fmt.Sprintf("Freed %d.", r.d.db.TruncateAll()), nil
}

func cmdIndex(r *request) (string, error) {
	var b strings.Builder
	if err := r.d.db.DumpIndex(&b); err != nil {
		return "", err
	}
	return strings.TrimSuffix(b.String(), "\n"), nil
}

func cmdSets(r *request) (string, error) {
	var b strings.Builder
	if err := r.d.db.DumpSets(&b); err != nil {
		return "", err
	}
	return strings.TrimSuffix(b.String(), "\n"), nil
}

func compare(fn func(*store.DB, store.ID, store.ID) (bool, error)) func(*request) (string, error) {
	return func(r *request) (string, error) {
		ok, err := fn(r.d.db, r.value(0), r.value(1))
		if err != nil {
			return "", err
		}
		return boolReply(ok), nil
	}
}
