package collection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/dustin/go-humanize"

	"github.com/oshokin/xk6-qr/qr/store"
)

// dumpRecord is one line of a dump stream. Values are the stored bytes, so a
// dump does not depend on the codec and survives elements that fail to decode.
type dumpRecord struct {
	V []byte   `json:"v"`
	S *float64 `json:"s,omitempty"`
}

// Dump moves every element into w as JSON lines, index 0 first. Reading and
// deleting the collection happen in one batch, so elements pushed after the
// dump are left in place and no element is dumped twice.
func (l *list[T]) Dump(ctx context.Context, w io.Writer) (int, error) {
	replies, err := l.exec(ctx, store.NewBatch().Range(l.key, 0, -1).Delete(l.key))
	if err != nil {
		return 0, err
	}

	records := make([]dumpRecord, len(replies[0].Values))
	for i, raw := range replies[0].Values {
		records[i] = dumpRecord{V: raw}
	}

	return l.writeRecords(ctx, w, records)
}

// Load pushes every element of a Dump stream in file order, so loading into an
// empty collection restores the dumped order. The whole stream is parsed before
// anything is written.
func (l *list[T]) Load(ctx context.Context, r io.Reader) (int, error) {
	records, err := readRecords(r)
	if err != nil {
		return 0, err
	}

	if len(records) == 0 {
		return 0, nil
	}

	raws := make([][]byte, len(records))
	for i, rec := range records {
		raws[i] = rec.V
	}

	if _, err = l.exec(ctx, l.withCap(store.NewBatch().PushRight(l.key, raws...))); err != nil {
		return 0, err
	}

	return len(records), nil
}

// Dump moves every element with its score into w as JSON lines in rank order.
func (p *Priority[T]) Dump(ctx context.Context, w io.Writer) (int, error) {
	replies, err := p.exec(ctx, store.NewBatch().ScoreRange(p.key, 0, -1).Delete(p.key))
	if err != nil {
		return 0, err
	}

	records := make([]dumpRecord, len(replies[0].Members))
	for i, m := range replies[0].Members {
		score := m.Score
		records[i] = dumpRecord{V: m.Member, S: &score}
	}

	return p.writeRecords(ctx, w, records)
}

// Load adds every element of a Dump stream with its score. Lines without a
// score are rejected.
func (p *Priority[T]) Load(ctx context.Context, r io.Reader) (int, error) {
	records, err := readRecords(r)
	if err != nil {
		return 0, err
	}

	if len(records) == 0 {
		return 0, nil
	}

	members := make([]store.ScoredMember, len(records))

	for i, rec := range records {
		if rec.S == nil {
			return 0, fmt.Errorf("%w: line %d has no score", ErrLoadFailed, i+1)
		}

		if math.IsNaN(*rec.S) {
			return 0, fmt.Errorf("%w: line %d: %w", ErrLoadFailed, i+1, ErrInvalidScore)
		}

		members[i] = store.ScoredMember{Member: rec.V, Score: *rec.S}
	}

	if _, err = p.exec(ctx, store.NewBatch().ScoreAdd(p.key, members...)); err != nil {
		return 0, err
	}

	return len(records), nil
}

func (h *handle[T]) writeRecords(ctx context.Context, w io.Writer, records []dumpRecord) (int, error) {
	var size uint64

	enc := json.NewEncoder(w)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			// The batch already deleted the collection; report how much reached w.
			return i, fmt.Errorf("%w: %s %q after %d of %d elements: %w",
				ErrDumpFailed, h.kind, h.key, i, len(records), err)
		}

		size += uint64(len(rec.V))
	}

	h.logger.DebugContext(ctx, "collection dumped",
		slog.Int("elements", len(records)),
		slog.String("size", humanize.Bytes(size)))

	return len(records), nil
}

func readRecords(r io.Reader) ([]dumpRecord, error) {
	var records []dumpRecord

	dec := json.NewDecoder(r)

	for {
		var rec dumpRecord

		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return records, nil
		}

		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrLoadFailed, len(records)+1, err)
		}

		records = append(records, rec)
	}
}
