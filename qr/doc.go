// Package qr provides queues, stacks, deques, capped collections and
// priority queues shared across all VUs (virtual users).
//
// High-level behavior:
//   - openQr() parses its options into a store configuration and acquires the
//     store for it from a process-wide pool. VUs passing equal options share
//     one store; different options open different stores.
//   - Collection handles are thin: they hold a key and a codec, and every
//     operation is one atomic batch against the store, so any number of VUs
//     can push and pop the same key concurrently.
//   - Blocking pops (popWait and friends) run off the event loop and resolve
//     with null when their timeout elapses.
//   - The disk and pebble backends persist across runs and redis is shared
//     across processes. The memory backend is ephemeral.
package qr
