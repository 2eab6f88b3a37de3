package command

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/athena/internal/eval"
	"github.com/roach88/athena/internal/journal"
	"github.com/roach88/athena/internal/store"
)

// Status classifies a reply.
type Status string

const (
	StatusOK       Status = "ok"
	StatusError    Status = "error"
	StatusQuit     Status = "quit"     // the client asked to end its session
	StatusShutdown Status = "shutdown" // the client asked to stop the server
)

// Reply is the outcome of one command. Text may span several lines
// separated by "\n"; it never ends with a newline.
type Reply struct {
	Text   string
	Status Status
}

// Journal receives every executed command.
type Journal interface {
	Append(ctx context.Context, e journal.Entry) (int64, error)
}

// Observer is notified after every command and every collection.
// ObserveError follows ObserveCommand for failed commands with the
// failure's class (ClassLookup, ClassSyntax, ...).
type Observer interface {
	ObserveCommand(command string, status Status, elapsed time.Duration)
	ObserveError(command, class string)
	ObserveCollect(collected int)
}

// Dispatcher executes protocol commands against a store.
// It is safe for concurrent use by many sessions.
type Dispatcher struct {
	db       *store.DB
	ev       *eval.Evaluator
	journal  Journal
	observer Observer
	logger   *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithJournal records every executed command in j.
func WithJournal(j Journal) Option {
	return func(d *Dispatcher) {
		d.journal = j
	}
}

// WithObserver reports command outcomes to o.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) {
		d.observer = o
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// New creates a Dispatcher over db evaluating expressions with ev.
func New(db *store.DB, ev *eval.Evaluator, opts ...Option) *Dispatcher {
	d := &Dispatcher{db: db, ev: ev, logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DB returns the store the dispatcher executes against.
func (d *Dispatcher) DB() *store.DB { return d.db }

// Execute runs one command line on behalf of sess.
//
// Every failure, including unknown commands and malformed arguments, is
// reported in the reply; Execute itself never fails. LOCK may block until
// another session releases the lock.
func (d *Dispatcher) Execute(ctx context.Context, sess *Session, line string) Reply {
	started := time.Now()
	word, rest := splitCommand(line)
	name := strings.ToUpper(word)

	sc := d.db.NewScope()
	args, reply, err := d.run(sc, sess, name, rest)
	sc.Close(err)
	var class string
	if err != nil {
		reply = Reply{Text: errorText(err), Status: StatusError}
		class = errorClass(err)
	}

	label := name
	if _, ok := commands[name]; !ok {
		label = "UNKNOWN"
	}
	elapsed := time.Since(started)
	attrs := []any{"session", sess.ID, "command", label, "status", reply.Status, "elapsed", elapsed}
	if class != "" {
		attrs = append(attrs, "error_class", class)
	}
	d.logger.Debug("command executed", attrs...)
	if d.observer != nil {
		d.observer.ObserveCommand(label, reply.Status, elapsed)
		if class != "" {
			d.observer.ObserveError(label, class)
		}
	}
	d.record(ctx, sess, name, args, reply)
	return reply
}

func (d *Dispatcher) run(sc *store.Scope, sess *Session, name, rest string) ([]arg, Reply, error) {
	if name == "" {
		return nil, Reply{}, ErrEmptyCommand
	}
	c, ok := commands[name]
	if !ok {
		return nil, Reply{}, &unknownError{name: name}
	}
	args, err := d.parseArgs(sc, c, rest)
	if err != nil {
		return nil, Reply{}, err
	}
	req := &request{d: d, sc: sc, sess: sess, args: args}
	text, err := c.run(req)
	if err != nil {
		return args, Reply{}, err
	}
	status := StatusOK
	if c.status != "" {
		status = c.status
	}
	return args, Reply{Text: text, Status: status}, nil
}

func (d *Dispatcher) record(ctx context.Context, sess *Session, name string, args []arg, reply Reply) {
	if d.journal == nil || name == "" {
		return
	}
	texts := make([]string, len(args))
	for i, a := range args {
		texts[i] = a.text
	}
	status := journal.StatusOK
	if reply.Status == StatusError {
		status = journal.StatusError
	}
	_, err := d.journal.Append(ctx, journal.Entry{
		Session: sess.ID,
		Command: name,
		Args:    texts,
		Status:  status,
		Reply:   reply.Text,
	})
	if err != nil {
		d.logger.Warn("journal append failed", "session", sess.ID, "command", name, "error", err)
	}
}

// CloseSession releases every advisory lock sess still holds and returns
// how many there were.
func (d *Dispatcher) CloseSession(sess *Session) int {
	handles := sess.takeAll()
	for _, h := range handles {
		if err := d.db.UnlockHandle(h); err != nil && !errors.Is(err, store.ErrNotLocked) {
			d.logger.Warn("releasing advisory lock", "session", sess.ID, "error", err)
		}
	}
	if len(handles) > 0 {
		d.logger.Debug("session locks released", "session", sess.ID, "locks", len(handles))
	}
	return len(handles)
}

type unknownError struct {
	name string
}

func (e *unknownError) Error() string { return "unknown command " + e.name }

func (e *unknownError) Unwrap() error { return ErrUnknownCommand }
