package queue

import (
	"context"
	"sync"
	"time"

	"courier/pkg/models"
)

// MemoryQueue is the in-process backend: a FIFO slice guarded by a single
// mutex with a condition variable. Put wakes exactly one waiter. Nothing
// survives a restart.
type MemoryQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []models.EnrichedItem
	closed bool
}

func NewMemoryQueue() *MemoryQueue {
	q := &MemoryQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *MemoryQueue) Put(ctx context.Context, item models.EnrichedItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.items = append(q.items, item)
	q.cond.Signal()
	return nil
}

func (q *MemoryQueue) Pop(ctx context.Context, timeout time.Duration) (*models.EnrichedItem, error) {
	deadline := time.Now().Add(timeout)

	// The cond has no timed wait; broadcast when the deadline passes or the
	// caller is cancelled so the waiter re-checks its exit conditions.
	timer := time.AfterFunc(timeout, func() { q.cond.Broadcast() })
	defer timer.Stop()
	stop := context.AfterFunc(ctx, func() { q.cond.Broadcast() })
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 {
		if q.closed {
			return nil, ErrQueueClosed
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !time.Now().Before(deadline) {
			return nil, nil
		}
		q.cond.Wait()
	}

	item := q.items[0]
	q.items = q.items[1:]
	return &item, nil
}

func (q *MemoryQueue) Size(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.items)), nil
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
	return nil
}
