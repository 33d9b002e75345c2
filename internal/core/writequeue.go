package core

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// writeQueue admits one load-modify-save cycle per owner at a time. Waiters
// queue on the owner's semaphore and give up when their context ends.
type writeQueue struct {
	mu    sync.Mutex
	lanes map[string]*semaphore.Weighted
}

func newWriteQueue() *writeQueue {
	return &writeQueue{lanes: make(map[string]*semaphore.Weighted)}
}

func (q *writeQueue) lane(ownerID string) *semaphore.Weighted {
	q.mu.Lock()
	defer q.mu.Unlock()

	l, ok := q.lanes[ownerID]
	if !ok {
		l = semaphore.NewWeighted(1)
		q.lanes[ownerID] = l
	}
	return l
}

// acquire blocks until ownerID's lane is free and returns its release func.
func (q *writeQueue) acquire(ctx context.Context, ownerID string) (func(), error) {
	l := q.lane(ownerID)
	if err := l.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { l.Release(1) }, nil
}
