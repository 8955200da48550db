package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/xk6-qr/internal/gateway"
	"github.com/oshokin/xk6-qr/qr/codec"
	"github.com/oshokin/xk6-qr/qr/collection"
	"github.com/oshokin/xk6-qr/qr/store"
)

func openMemory(t *testing.T) store.Store {
	t.Helper()

	st := store.NewMemoryStore(nil)
	require.NoError(t, st.Open())

	t.Cleanup(func() { _ = st.Close() })

	return st
}

func readLines(t *testing.T, r io.Reader) []line {
	t.Helper()

	var out []line

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		var l line

		require.NoError(t, json.Unmarshal(scanner.Bytes(), &l))

		out = append(out, l)
	}

	require.NoError(t, scanner.Err())

	return out
}

func TestTailPrintsQueueInOrder(t *testing.T) {
	t.Parallel()

	st := openMemory(t)
	ctx := context.Background()

	q, err := collection.NewQueue[[]byte](st, "jobs", codec.Bytes{})
	require.NoError(t, err)

	for _, v := range []string{"a", "b", "c"} {
		require.NoError(t, q.Push(ctx, []byte(v)))
	}

	var out bytes.Buffer

	stats, err := tail(ctx, st, gateway.Collection{Key: "jobs", Kind: collection.KindQueue}, tailOptions{
		out:    &out,
		count:  3,
		poll:   50 * time.Millisecond,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	require.Equal(t, int64(3), stats.Processed)

	lines := readLines(t, &out)
	require.Len(t, lines, 3)

	for i, want := range []string{"a", "b", "c"} {
		require.Equal(t, want, lines[i].Value)
		require.Equal(t, "jobs", lines[i].Key)
		require.NotEmpty(t, lines[i].Worker)
	}
}

func TestTailConsumesDequeFront(t *testing.T) {
	t.Parallel()

	st := openMemory(t)
	ctx := context.Background()

	d, err := collection.NewDeque[[]byte](st, "work", codec.Bytes{})
	require.NoError(t, err)
	require.NoError(t, d.PushBack(ctx, []byte("back")))
	require.NoError(t, d.PushFront(ctx, []byte("front")))

	var out bytes.Buffer

	_, err = tail(ctx, st, gateway.Collection{Key: "work", Kind: collection.KindDeque}, tailOptions{
		out:    &out,
		count:  1,
		poll:   50 * time.Millisecond,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	lines := readLines(t, &out)
	require.Len(t, lines, 1)
	require.Equal(t, "front", lines[0].Value)
}

func TestTailStopsOnCancel(t *testing.T) {
	t.Parallel()

	st := openMemory(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	stats, err := tail(ctx, st, gateway.Collection{Key: "idle", Kind: collection.KindStack}, tailOptions{
		out:    io.Discard,
		poll:   20 * time.Millisecond,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	require.Zero(t, stats.Received)
}

func TestTailRejectsPriorityQueues(t *testing.T) {
	t.Parallel()

	_, err := tail(context.Background(), openMemory(t), gateway.Collection{Key: "p", Kind: collection.KindPriority}, tailOptions{
		out:    io.Discard,
		logger: slog.Default(),
	})
	require.ErrorIs(t, err, errNotTailable)
}
