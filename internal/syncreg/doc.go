// Package syncreg provides the lock registry shared by the object store,
// the named-set directory and individual objects.
//
// Every lockable resource is identified by a Handle. The store and the
// directory use the reserved StoreHandle and DirectoryHandle; objects use
// handles derived from their identifier and slot generation.
//
// Lock ordering: a goroutine that needs more than one of {store,
// directory, object} acquires them in that order and releases them in
// reverse.
package syncreg
