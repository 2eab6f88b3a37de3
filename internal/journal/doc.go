// Package journal stores an append-only record of executed commands in
// SQLite.
//
// Each entry carries the session token, command name, arguments, outcome
// and reply, stamped with a logical sequence number. The journal backs the
// trace command; it is not a persistence layer for set data.
package journal
