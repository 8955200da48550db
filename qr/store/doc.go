// Package store provides the list and sorted-set storage abstraction used by
// the collection engines. It defines the Store interface, the Batch builder
// that carries every primitive, and four implementations: an in-memory sharded
// store, a bbolt file, a pebble directory and a Redis client.
//
// Every call to Exec runs its batch indivisibly: no other batch observes a
// state in which only part of it has been applied. For the local backends this
// also means all-or-nothing; an error from any operation leaves the store as it
// was before the batch started. The Redis backend inherits MULTI/EXEC
// semantics, where a command that fails at run time does not undo the others.
//
// Indices follow the Redis conventions: zero-based, negative values count from
// the end (-1 is the last element), stop bounds are inclusive and out-of-range
// bounds are clamped.
package store
