package syncer

import (
	"context"
	"sync"

	"github.com/clipsync-app/clipsync/internal/capture"
)

// Queue is the unbounded FIFO channel between capture and dispatch.
// Multiple producers (watcher, manual trigger, mode-switch flush) feed
// it; a single dispatcher drains it. Enqueue never blocks — there is no
// backpressure, which also means an extended remote outage grows the
// queue without bound. That risk is accepted; see DESIGN.md.
type Queue struct {
	mu    sync.Mutex
	items []*capture.Request

	// signal wakes the single consumer. Buffered so producers never
	// block even when the consumer is mid-dispatch.
	signal chan struct{}
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends a request. Safe for concurrent producers; never
// blocks.
func (q *Queue) Enqueue(req *capture.Request) {
	q.mu.Lock()
	q.items = append(q.items, req)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Dequeue removes and returns the oldest request, blocking until one is
// available or the context is canceled.
func (q *Queue) Dequeue(ctx context.Context) (*capture.Request, error) {
	for {
		if req := q.tryPop(); req != nil {
			return req, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.signal:
		}
	}
}

// tryPop removes the head if present.
func (q *Queue) tryPop() *capture.Request {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}

	req := q.items[0]
	q.items = q.items[1:]

	return req
}

// Len returns the number of queued requests.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}
