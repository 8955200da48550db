package store

import (
	"context"
	"time"
)

// Store defines the storage primitives the collection engines are built on.
//
// General notes:
//
//   - Keys are strings; they must be non-empty, at most MaxKeyLength bytes and
//     must not contain NUL. Values and sorted-set members are opaque bytes.
//   - A key holds either a list or a sorted set. Keys whose list or set becomes
//     empty cease to exist, so the same key may later hold the other kind.
//   - All methods MUST be safe for concurrent use.
//
// Error semantics:
//
//   - Empty results are not errors: pops and index reads on a missing key
//     report Found == false, ranges return an empty slice.
//   - Operations against a closed store return ErrClosed.
//   - Backend failures are wrapped around ErrStoreReadFailed or
//     ErrStoreWriteFailed so callers can classify them with errors.Is.
type Store interface {
	// Open prepares the store for use (file handles, network clients).
	// Each successful Open must be balanced by a Close; the underlying
	// resources are released when the last reference is closed.
	Open() error

	// Close releases one reference taken by Open. Releasing the last one
	// wakes every in-flight BlockingPop, which then returns ErrClosed.
	Close() error

	// Exec runs every operation of batch in order as one indivisible unit and
	// returns one Reply per operation, at the same index.
	Exec(ctx context.Context, batch *Batch) ([]Reply, error)

	// BlockingPop removes and returns one element from the given side of the
	// list at key, waiting for an element to arrive if the list is empty.
	//
	// Semantics:
	//   - timeout > 0: when nothing arrives in time, returns found == false and
	//     a nil error.
	//   - timeout == 0: waits until an element arrives, ctx is done or the
	//     store is closed.
	//   - When ctx is done the context error is returned.
	BlockingPop(ctx context.Context, key string, side Side, timeout time.Duration) (value []byte, found bool, err error)
}

// Side selects one end of a list. Index 0 of a list is its Left end.
type Side int

const (
	// Left is the head of the list (index 0).
	Left Side = iota
	// Right is the tail of the list (index -1).
	Right
)

// String returns the lowercase name of the side.
func (s Side) String() string {
	if s == Right {
		return "right"
	}

	return "left"
}

// ScoredMember is one sorted-set entry.
type ScoredMember struct {
	Member []byte
	Score  float64
}

// Reply holds the result of one batch operation. Which fields are meaningful
// depends on the operation:
//
//   - PushLeft, PushRight: Count is the list length after the push.
//   - PopLeft, PopRight, Index: Value and Found.
//   - Range: Values, in list order.
//   - Length, ScoreCard: Count.
//   - Delete: Count is 1 when the key existed, 0 otherwise.
//   - ScoreAdd: Count is the number of members that were not present before.
//   - ScoreRange: Members, ascending by score then member bytes.
//   - ScoreRemoveRangeByRank: Count is the number of removed members.
//   - Trim: nothing.
type Reply struct {
	Value   []byte
	Values  [][]byte
	Members []ScoredMember
	Count   int64
	Found   bool
}
