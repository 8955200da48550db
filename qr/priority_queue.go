package qr

import (
	"context"
	"fmt"

	"github.com/grafana/sobek"
	"go.k6.io/k6/js/common"

	"github.com/oshokin/xk6-qr/qr/collection"
)

// jsPriority is the JS face of a priority queue. Lower scores pop first.
type jsPriority struct {
	client   *Client
	priority *collection.Priority[any]
}

// Key returns the store key of the queue.
func (p *jsPriority) Key() string {
	return p.priority.Key()
}

// Push inserts value with score, replacing the score of an equal value.
func (p *jsPriority) Push(value, score sobek.Value) *sobek.Promise {
	s, err := parseScoreValue(exportOrNil(score))
	if err != nil {
		return p.client.rejected(err)
	}

	exported := value.Export()

	return p.client.runAsync(func(ctx context.Context) (any, error) {
		return nil, p.priority.Push(ctx, exported, s)
	}, func(_ *sobek.Runtime, _ any) sobek.Value {
		return value
	})
}

// Pop resolves to the lowest-scored value, or null.
func (p *jsPriority) Pop() *sobek.Promise {
	return p.client.runAsync(func(ctx context.Context) (any, error) {
		v, ok, err := p.priority.Pop(ctx)

		return optional{value: v, ok: ok}, err
	}, toJSOptional)
}

// PopWithScore resolves to {value, score} of the lowest-scored element, or null.
func (p *jsPriority) PopWithScore() *sobek.Promise {
	return p.client.runAsync(func(ctx context.Context) (any, error) {
		item, ok, err := p.priority.PopWithScore(ctx)

		return optional{value: scoredToJS(item), ok: ok}, err
	}, toJSOptional)
}

// Peek resolves to the lowest-scored value without removing it.
func (p *jsPriority) Peek() *sobek.Promise {
	return p.client.runAsync(func(ctx context.Context) (any, error) {
		v, ok, err := p.priority.Peek(ctx)

		return optional{value: v, ok: ok}, err
	}, toJSOptional)
}

// PeekWithScore resolves to {value, score} of the lowest-scored element without removing it.
func (p *jsPriority) PeekWithScore() *sobek.Promise {
	return p.client.runAsync(func(ctx context.Context) (any, error) {
		item, ok, err := p.priority.PeekWithScore(ctx)

		return optional{value: scoredToJS(item), ok: ok}, err
	}, toJSOptional)
}

// Elements resolves to every value in ascending score order.
func (p *jsPriority) Elements() *sobek.Promise {
	return p.client.runAsync(func(ctx context.Context) (any, error) {
		return p.priority.Elements(ctx)
	}, toJSArray)
}

// ElementsWithScores resolves to every {value, score} in ascending score order.
func (p *jsPriority) ElementsWithScores() *sobek.Promise {
	return p.client.runAsync(func(ctx context.Context) (any, error) {
		items, err := p.priority.ElementsWithScores(ctx)

		return scoredList(items), err
	}, toJSArray)
}

// ElementsJSON resolves to a JSON array string of {value, score}.
func (p *jsPriority) ElementsJSON() *sobek.Promise {
	return p.client.runAsync(func(ctx context.Context) (any, error) {
		out, err := p.priority.ElementsJSON(ctx)

		return string(out), err
	}, toJSValue)
}

// Extend inserts an array of {value, score} objects in one batch.
func (p *jsPriority) Extend(values sobek.Value) *sobek.Promise {
	items, err := p.exportScored(values)
	if err != nil {
		return p.client.rejected(err)
	}

	return p.client.runAsync(func(ctx context.Context) (any, error) {
		return len(items), p.priority.Extend(ctx, items...)
	}, toJSValue)
}

// Index resolves to {value, score} at rank i, or null.
func (p *jsPriority) Index(i sobek.Value) *sobek.Promise {
	at, err := argInt(i)
	if err != nil {
		return p.client.rejected(NewError(ValueNumberRequiredError, fmt.Sprintf("index must be a number: %v", err)))
	}

	return p.client.runAsync(func(ctx context.Context) (any, error) {
		item, ok, err := p.priority.Index(ctx, at)

		return optional{value: scoredToJS(item), ok: ok}, err
	}, toJSOptional)
}

// Slice resolves to the {value, score} objects with rank in [i, j).
func (p *jsPriority) Slice(i, j sobek.Value) *sobek.Promise {
	start, stop, err := sliceArgs(i, j)
	if err != nil {
		return p.client.rejected(err)
	}

	return p.client.runAsync(func(ctx context.Context) (any, error) {
		items, err := p.priority.Slice(ctx, start, stop)

		return scoredList(items), err
	}, toJSArray)
}

// Len resolves to the number of elements.
func (p *jsPriority) Len() *sobek.Promise {
	return p.client.runAsync(func(ctx context.Context) (any, error) {
		return p.priority.Len(ctx)
	}, toJSValue)
}

// Clear removes the queue.
func (p *jsPriority) Clear() *sobek.Promise {
	return p.client.runAsync(func(ctx context.Context) (any, error) {
		return true, p.priority.Clear(ctx)
	}, toJSValue)
}

// Dump moves the queue into fileName and resolves to the element count.
func (p *jsPriority) Dump(fileName sobek.Value) *sobek.Promise {
	path := fileName.String()

	return p.client.runAsync(func(ctx context.Context) (any, error) {
		return dumpToFile(ctx, path, p.priority.Dump)
	}, toJSValue)
}

// Load inserts the elements of a dump file and resolves to the element count.
func (p *jsPriority) Load(fileName sobek.Value) *sobek.Promise {
	path := fileName.String()

	return p.client.runAsync(func(ctx context.Context) (any, error) {
		return loadFromFile(ctx, path, p.priority.Load)
	}, toJSValue)
}

func (p *jsPriority) exportScored(values sobek.Value) ([]collection.Scored[any], error) {
	raw, err := exportArray(p.client.vu.Runtime(), values)
	if err != nil {
		return nil, err
	}

	items := make([]collection.Scored[any], 0, len(raw))

	for i, entry := range raw {
		obj, ok := entry.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: element %d must be an object {value, score}", ErrUnsupportedValue, i)
		}

		score, err := parseScoreValue(obj["score"])
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}

		items = append(items, collection.Scored[any]{Value: obj["value"], Score: score})
	}

	return items, nil
}

func scoredList(items []collection.Scored[any]) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = scoredToJS(item)
	}

	return out
}

func exportOrNil(v sobek.Value) any {
	if common.IsNullish(v) {
		return nil
	}

	return v.Export()
}
