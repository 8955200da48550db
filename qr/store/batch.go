package store

import (
	"fmt"
	"math"
	"strings"
)

// OpKind identifies a batch operation.
type OpKind int

const (
	// OpPushLeft prepends values to a list, one by one.
	OpPushLeft OpKind = iota
	// OpPushRight appends values to a list, one by one.
	OpPushRight
	// OpPopLeft removes the head of a list.
	OpPopLeft
	// OpPopRight removes the tail of a list.
	OpPopRight
	// OpTrim keeps only the elements in [Start, Stop] of a list.
	OpTrim
	// OpRange reads the elements in [Start, Stop] of a list.
	OpRange
	// OpIndex reads the element at Start.
	OpIndex
	// OpLength reads the length of a list.
	OpLength
	// OpDelete removes a key of any kind.
	OpDelete
	// OpScoreAdd upserts sorted-set members.
	OpScoreAdd
	// OpScoreRange reads sorted-set members by rank in [Start, Stop].
	OpScoreRange
	// OpScoreRemoveRangeByRank removes sorted-set members by rank in [Start, Stop].
	OpScoreRemoveRangeByRank
	// OpScoreCard reads the cardinality of a sorted set.
	OpScoreCard
)

// MaxKeyLength bounds key sizes across backends.
const MaxKeyLength = 1024

var opKindNames = map[OpKind]string{
	OpPushLeft:               "push-left",
	OpPushRight:              "push-right",
	OpPopLeft:                "pop-left",
	OpPopRight:               "pop-right",
	OpTrim:                   "trim",
	OpRange:                  "range",
	OpIndex:                  "index",
	OpLength:                 "length",
	OpDelete:                 "delete",
	OpScoreAdd:               "score-add",
	OpScoreRange:             "score-range",
	OpScoreRemoveRangeByRank: "score-remove-range-by-rank",
	OpScoreCard:              "score-card",
}

// String returns the operation name used in errors and logs.
func (k OpKind) String() string {
	if name, ok := opKindNames[k]; ok {
		return name
	}

	return fmt.Sprintf("op(%d)", int(k))
}

// mutates reports whether the operation may change the store.
func (k OpKind) mutates() bool {
	switch k {
	case OpRange, OpIndex, OpLength, OpScoreRange, OpScoreCard:
		return false
	default:
		return true
	}
}

// Op is one primitive inside a Batch.
type Op struct {
	Key     string
	Values  [][]byte
	Members []ScoredMember
	Start   int64
	Stop    int64
	Kind    OpKind
}

// Batch is an ordered list of primitives executed indivisibly by Store.Exec.
// The builder methods return the batch so calls can be chained.
type Batch struct {
	ops []Op
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return new(Batch)
}

// Ops returns the operations in execution order.
func (b *Batch) Ops() []Op {
	if b == nil {
		return nil
	}

	return b.ops
}

// Len returns the number of operations in the batch.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}

	return len(b.ops)
}

// PushLeft prepends each value in turn, so the last value ends up at index 0.
func (b *Batch) PushLeft(key string, values ...[]byte) *Batch {
	return b.add(Op{Kind: OpPushLeft, Key: key, Values: values})
}

// PushRight appends each value in turn.
func (b *Batch) PushRight(key string, values ...[]byte) *Batch {
	return b.add(Op{Kind: OpPushRight, Key: key, Values: values})
}

// PopLeft removes and returns the element at index 0.
func (b *Batch) PopLeft(key string) *Batch {
	return b.add(Op{Kind: OpPopLeft, Key: key})
}

// PopRight removes and returns the element at index -1.
func (b *Batch) PopRight(key string) *Batch {
	return b.add(Op{Kind: OpPopRight, Key: key})
}

// Trim keeps only the elements between start and stop inclusive.
func (b *Batch) Trim(key string, start, stop int64) *Batch {
	return b.add(Op{Kind: OpTrim, Key: key, Start: start, Stop: stop})
}

// Range reads the elements between start and stop inclusive.
func (b *Batch) Range(key string, start, stop int64) *Batch {
	return b.add(Op{Kind: OpRange, Key: key, Start: start, Stop: stop})
}

// Index reads the element at position i.
func (b *Batch) Index(key string, i int64) *Batch {
	return b.add(Op{Kind: OpIndex, Key: key, Start: i})
}

// Length reads the number of elements of the list at key.
func (b *Batch) Length(key string) *Batch {
	return b.add(Op{Kind: OpLength, Key: key})
}

// Delete removes key whatever it holds.
func (b *Batch) Delete(key string) *Batch {
	return b.add(Op{Kind: OpDelete, Key: key})
}

// ScoreAdd inserts members or updates the score of members already present.
func (b *Batch) ScoreAdd(key string, members ...ScoredMember) *Batch {
	return b.add(Op{Kind: OpScoreAdd, Key: key, Members: members})
}

// ScoreRange reads members with rank between start and stop inclusive,
// together with their scores.
func (b *Batch) ScoreRange(key string, start, stop int64) *Batch {
	return b.add(Op{Kind: OpScoreRange, Key: key, Start: start, Stop: stop})
}

// ScoreRemoveRangeByRank removes members with rank between start and stop inclusive.
func (b *Batch) ScoreRemoveRangeByRank(key string, start, stop int64) *Batch {
	return b.add(Op{Kind: OpScoreRemoveRangeByRank, Key: key, Start: start, Stop: stop})
}

// ScoreCard reads the number of members of the sorted set at key.
func (b *Batch) ScoreCard(key string) *Batch {
	return b.add(Op{Kind: OpScoreCard, Key: key})
}

func (b *Batch) add(op Op) *Batch {
	b.ops = append(b.ops, op)

	return b
}

// validate rejects batches that no backend may run.
func (b *Batch) validate() error {
	if b.Len() == 0 {
		return ErrBatchEmpty
	}

	for i := range b.ops {
		op := &b.ops[i]

		if err := ValidateKey(op.Key); err != nil {
			return fmt.Errorf("op %d (%s): %w", i, op.Kind, err)
		}

		if _, ok := opKindNames[op.Kind]; !ok {
			return fmt.Errorf("op %d: %w: %s", i, ErrUnknownOp, op.Kind)
		}

		for _, m := range op.Members {
			if math.IsNaN(m.Score) {
				return fmt.Errorf("op %d (%s): %w: NaN", i, op.Kind, ErrInvalidScore)
			}
		}
	}

	return nil
}

// ValidateKey reports whether key can be stored by every backend.
func ValidateKey(key string) error {
	switch {
	case key == "":
		return fmt.Errorf("%w: empty", ErrInvalidKey)
	case len(key) > MaxKeyLength:
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidKey, MaxKeyLength)
	case strings.IndexByte(key, 0) >= 0:
		return fmt.Errorf("%w: contains NUL", ErrInvalidKey)
	default:
		return nil
	}
}
