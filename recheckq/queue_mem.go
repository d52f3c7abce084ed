package recheckq

import (
	"context"
	"sync"
	"time"
)

// In-process FIFO queue. Unbounded; Enqueue never blocks.
type MemQueue struct {
	mu   sync.Mutex
	jobs []Job
	wake chan struct{}
}

func NewMemQueue() *MemQueue {
	return &MemQueue{
		wake: make(chan struct{}, 1),
	}
}

func (q *MemQueue) Enqueue(ctx context.Context, listingID string) error {
	q.mu.Lock()
	q.jobs = append(q.jobs, Job{ListingID: listingID, EnqueuedAt: time.Now().UTC()})
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

func (q *MemQueue) Dequeue(ctx context.Context) (*Job, error) {
	for {
		q.mu.Lock()
		if len(q.jobs) > 0 {
			job := q.jobs[0]
			q.jobs = q.jobs[1:]
			// keep the wake signal armed if more jobs remain
			if len(q.jobs) > 0 {
				select {
				case q.wake <- struct{}{}:
				default:
				}
			}
			q.mu.Unlock()
			return &job, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.wake:
		}
	}
}

func (q *MemQueue) Len(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs), nil
}
