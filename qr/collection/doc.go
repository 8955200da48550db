// Package collection implements deques, queues, stacks, capped collections
// and priority queues on top of a store.Store.
//
// A collection handle is a key plus a store and a codec; it caches nothing,
// so any number of handles (in any number of processes) may share a key.
// Every operation is a single store batch. Operations made of several
// primitives, like a capped push or a priority pop, rely on the batch being
// indivisible and never take an in-process lock.
//
// List convention: index 0 of the stored list is its left end. Pushes go to
// the left, which makes Elements return the newest element first for queues,
// stacks and capped collections.
//
// Elements that cannot be decoded are reported through the handle's logger
// and treated as absent: pops still consume them, listings skip them.
package collection
