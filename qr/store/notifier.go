package store

import (
	"context"
	"sync"
	"time"
)

// notifier wakes blocking pops when an element is pushed to the key they wait on.
// Each key has at most one channel; it is closed and forgotten on the next push,
// so every waiter registered before the push observes it.
type notifier struct {
	mu      sync.Mutex
	waiters map[string]chan struct{}
	done    chan struct{}
	stopped bool
}

func newNotifier() *notifier {
	return &notifier{
		waiters: make(map[string]chan struct{}),
		done:    make(chan struct{}),
	}
}

// wait returns a channel closed on the next push to key.
func (n *notifier) wait(key string) <-chan struct{} {
	n.mu.Lock()
	defer n.mu.Unlock()

	ch, ok := n.waiters[key]
	if !ok {
		ch = make(chan struct{})
		n.waiters[key] = ch
	}

	return ch
}

// notify wakes every waiter of the given keys.
func (n *notifier) notify(keys ...string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, key := range keys {
		if ch, ok := n.waiters[key]; ok {
			close(ch)
			delete(n.waiters, key)
		}
	}
}

// closed returns a channel closed once the owning store shuts down.
func (n *notifier) closed() <-chan struct{} {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.done
}

// shutdown releases every waiter for good.
func (n *notifier) shutdown() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.stopped {
		return
	}

	n.stopped = true
	close(n.done)
}

// reset re-arms a notifier after shutdown so a store can be reopened.
func (n *notifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.stopped {
		return
	}

	n.stopped = false
	n.done = make(chan struct{})
	clear(n.waiters)
}

// pushedKeys returns the keys of batch that received new list elements.
func pushedKeys(batch *Batch) []string {
	var keys []string

	for _, op := range batch.Ops() {
		if (op.Kind == OpPushLeft || op.Kind == OpPushRight) && len(op.Values) > 0 {
			keys = append(keys, op.Key)
		}
	}

	return keys
}

// blockingPop implements Store.BlockingPop for the local backends on top of a
// non-blocking pop. The waiter is registered before every attempt so a push
// landing between the attempt and the wait is never missed.
func blockingPop(
	ctx context.Context,
	n *notifier,
	key string,
	timeout time.Duration,
	tryPop func() ([]byte, bool, error),
) ([]byte, bool, error) {
	var expired <-chan time.Time

	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()

		expired = timer.C
	}

	done := n.closed()

	for {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}

		select {
		case <-done:
			return nil, false, ErrClosed
		default:
		}

		wake := n.wait(key)

		value, found, err := tryPop()
		if err != nil || found {
			return value, found, err
		}

		select {
		case <-wake:
		case <-expired:
			return nil, false, nil
		case <-done:
			return nil, false, ErrClosed
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}
}
