// Package store holds every object of an athena database.
//
// Objects live in an arena of dense, reusable identifiers. Unbound
// objects are immutable and deduplicated: registering a value equal to a
// stored one returns the existing identifier. Names in the directory bind
// to root sets, which are mutable and never deduplicated.
//
// Liveness is decided by Collect: an object survives when it is a root,
// an unbound twin of a root, reachable by flattening a root, or pinned by
// an open Scope. Everything else is reclaimed.
//
// Locks come from a syncreg.Registry and are always taken in the order
// store, directory, object.
package store
