package collection

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/oshokin/xk6-qr/qr/codec"
	"github.com/oshokin/xk6-qr/qr/store"
)

// Scored pairs an element with its priority.
type Scored[T any] struct {
	Value T       `json:"value"`
	Score float64 `json:"score"`
}

// Priority is a priority queue backed by a sorted set. Lower scores pop first;
// equal scores pop in byte order of the encoded elements. Elements are unique
// by encoded bytes: pushing an element again only updates its score.
type Priority[T any] struct {
	handle[T]
}

// NewPriority returns a priority queue stored under key.
func NewPriority[T any](s store.Store, key string, c codec.Codec[T], opts ...Option) (*Priority[T], error) {
	h, err := newHandle(KindPriority, s, key, c, opts)
	if err != nil {
		return nil, err
	}

	return &Priority[T]{handle: h}, nil
}

// Push inserts v with the given score, or updates the score of v.
func (p *Priority[T]) Push(ctx context.Context, v T, score float64) error {
	return p.Extend(ctx, Scored[T]{Value: v, Score: score})
}

// Extend pushes every pair in one batch.
func (p *Priority[T]) Extend(ctx context.Context, items ...Scored[T]) error {
	if len(items) == 0 {
		return nil
	}

	members := make([]store.ScoredMember, 0, len(items))

	for _, item := range items {
		if math.IsNaN(item.Score) {
			return fmt.Errorf("%w: NaN", ErrInvalidScore)
		}

		raw, err := p.encode(item.Value)
		if err != nil {
			return err
		}

		members = append(members, store.ScoredMember{Member: raw, Score: item.Score})
	}

	_, err := p.exec(ctx, store.NewBatch().ScoreAdd(p.key, members...))

	return err
}

// Pop removes and returns the lowest-scored element.
func (p *Priority[T]) Pop(ctx context.Context) (T, bool, error) {
	item, ok, err := p.PopWithScore(ctx)

	return item.Value, ok, err
}

// PopWithScore removes and returns the lowest-scored element with its score.
// The read and the removal share one batch, so concurrent poppers never get
// the same element.
func (p *Priority[T]) PopWithScore(ctx context.Context) (Scored[T], bool, error) {
	replies, err := p.exec(ctx, store.NewBatch().
		ScoreRange(p.key, 0, 0).
		ScoreRemoveRangeByRank(p.key, 0, 0))
	if err != nil {
		return Scored[T]{}, false, err
	}

	return p.first(ctx, replies[0].Members)
}

// Peek returns the lowest-scored element without removing it. A later Pop
// may return a different element if other clients pop in between.
func (p *Priority[T]) Peek(ctx context.Context) (T, bool, error) {
	item, ok, err := p.PeekWithScore(ctx)

	return item.Value, ok, err
}

// PeekWithScore is Peek that also returns the score.
func (p *Priority[T]) PeekWithScore(ctx context.Context) (Scored[T], bool, error) {
	replies, err := p.exec(ctx, store.NewBatch().ScoreRange(p.key, 0, 0))
	if err != nil {
		return Scored[T]{}, false, err
	}

	return p.first(ctx, replies[0].Members)
}

// Index returns the element of rank i; negative ranks count from the highest score.
func (p *Priority[T]) Index(ctx context.Context, i int64) (Scored[T], bool, error) {
	replies, err := p.exec(ctx, store.NewBatch().ScoreRange(p.key, i, i))
	if err != nil {
		return Scored[T]{}, false, err
	}

	return p.first(ctx, replies[0].Members)
}

// Elements returns every element in ascending score order.
func (p *Priority[T]) Elements(ctx context.Context) ([]T, error) {
	items, err := p.ElementsWithScores(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]T, len(items))
	for i, item := range items {
		out[i] = item.Value
	}

	return out, nil
}

// ElementsWithScores returns every element with its score in ascending order.
func (p *Priority[T]) ElementsWithScores(ctx context.Context) ([]Scored[T], error) {
	return p.ranks(ctx, 0, -1)
}

// ElementsJSON renders ElementsWithScores as a JSON array of {value, score}.
func (p *Priority[T]) ElementsJSON(ctx context.Context) ([]byte, error) {
	items, err := p.ElementsWithScores(ctx)
	if err != nil {
		return nil, err
	}

	out, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncodeFailed, err)
	}

	return out, nil
}

// Slice returns the elements with rank in [i, j); negative bounds count from the end.
func (p *Priority[T]) Slice(ctx context.Context, i, j int64) ([]Scored[T], error) {
	stop, ok := sliceStop(j)
	if !ok {
		return []Scored[T]{}, nil
	}

	return p.ranks(ctx, i, stop)
}

// Len returns the number of elements.
func (p *Priority[T]) Len(ctx context.Context) (int64, error) {
	replies, err := p.exec(ctx, store.NewBatch().ScoreCard(p.key))
	if err != nil {
		return 0, err
	}

	return replies[0].Count, nil
}

func (p *Priority[T]) ranks(ctx context.Context, start, stop int64) ([]Scored[T], error) {
	replies, err := p.exec(ctx, store.NewBatch().ScoreRange(p.key, start, stop))
	if err != nil {
		return nil, err
	}

	return p.decodeMembers(ctx, replies[0].Members), nil
}

func (p *Priority[T]) decodeMembers(ctx context.Context, members []store.ScoredMember) []Scored[T] {
	out := make([]Scored[T], 0, len(members))

	for _, m := range members {
		if v, ok := p.decode(ctx, m.Member); ok {
			out = append(out, Scored[T]{Value: v, Score: m.Score})
		}
	}

	return out
}

// first decodes the head of a rank read.
func (p *Priority[T]) first(ctx context.Context, members []store.ScoredMember) (Scored[T], bool, error) {
	if len(members) == 0 {
		return Scored[T]{}, false, nil
	}

	v, ok := p.decode(ctx, members[0].Member)
	if !ok {
		return Scored[T]{}, false, nil
	}

	return Scored[T]{Value: v, Score: members[0].Score}, true, nil
}
