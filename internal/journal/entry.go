package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// Status values stored with each entry.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Entry is one executed command.
type Entry struct {
	Seq     int64    `json:"seq"`
	Session string   `json:"session"`
	Command string   `json:"command"`
	Args    []string `json:"args"`
	Status  string   `json:"status"`
	Reply   string   `json:"reply"`
}

// Append stamps e with the next sequence number and stores it.
// The assigned sequence number is returned.
func (j *Journal) Append(ctx context.Context, e Entry) (int64, error) {
	if e.Status != StatusOK && e.Status != StatusError {
		return 0, fmt.Errorf("append entry: invalid status %q", e.Status)
	}
	args := e.Args
	if args == nil {
		args = []string{}
	}
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return 0, fmt.Errorf("append entry: marshal args: %w", err)
	}

	seq := j.clock.Next()
	_, err = j.db.ExecContext(ctx, `
		INSERT INTO entries (seq, session, command, args, status, reply)
		VALUES (?, ?, ?, ?, ?, ?)
	`, seq, e.Session, e.Command, string(argsJSON), e.Status, e.Reply)
	if err != nil {
		return 0, fmt.Errorf("append entry: %w", err)
	}
	return seq, nil
}

// ReadSession returns a session's entries ordered by seq.
// Returns an empty slice (not nil) if the session has no entries.
func (j *Journal) ReadSession(ctx context.Context, session string) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, session, command, args, status, reply
		FROM entries
		WHERE session = ?
		ORDER BY seq ASC
	`, session)
	if err != nil {
		return nil, fmt.Errorf("query session entries: %w", err)
	}
	return scanEntries(rows)
}

// ReadRecent returns up to limit of the most recent entries in seq order.
// A non-positive limit returns every entry.
func (j *Journal) ReadRecent(ctx context.Context, limit int) ([]Entry, error) {
	query := `
		SELECT seq, session, command, args, status, reply FROM (
			SELECT * FROM entries ORDER BY seq DESC LIMIT ?
		) ORDER BY seq ASC
	`
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent entries: %w", err)
	}
	return scanEntries(rows)
}

// Sessions returns the distinct session tokens in order of first entry.
func (j *Journal) Sessions(ctx context.Context) ([]string, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT session FROM entries GROUP BY session ORDER BY MIN(seq) ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var argsJSON string
		if err := rows.Scan(&e.Seq, &e.Session, &e.Command, &argsJSON, &e.Status, &e.Reply); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if err := json.Unmarshal([]byte(argsJSON), &e.Args); err != nil {
			return nil, fmt.Errorf("unmarshal args of entry %d: %w", e.Seq, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}
