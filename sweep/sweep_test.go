package sweep

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/oakmarket/vigil/engine"
	"github.com/oakmarket/vigil/recheckq"
	"github.com/oakmarket/vigil/store"
	"github.com/stretchr/testify/assert"
)

func TestSweepOnce(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := engine.EngineTestFixture()
	queue := recheckq.NewMemQueue()
	sched := &Scheduler{
		Logger: slog.Default(),
		Store:  eng.Store,
		Queue:  queue,
	}

	now := time.Now().UTC()
	old := now.Add(-25 * time.Hour)
	fresh := now.Add(-1 * time.Hour)

	never := &store.Listing{Title: "never scanned"}
	stale := &store.Listing{Title: "scanned 25h ago", LastCheckedAt: &old}
	recent := &store.Listing{Title: "scanned 1h ago", LastCheckedAt: &fresh}
	for _, l := range []*store.Listing{recent, stale, never} {
		assert.NoError(eng.Store.CreateListing(ctx, l))
	}

	assert.NoError(sched.SweepOnce(ctx))

	depth, err := queue.Len(ctx)
	assert.NoError(err)
	assert.Equal(2, depth)

	first, err := queue.Dequeue(ctx)
	assert.NoError(err)
	assert.Equal(never.ID, first.ListingID)

	second, err := queue.Dequeue(ctx)
	assert.NoError(err)
	assert.Equal(stale.ID, second.ListingID)
}

func TestSweepBatchSize(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := engine.EngineTestFixture()
	queue := recheckq.NewMemQueue()
	sched := &Scheduler{
		Logger:    slog.Default(),
		Store:     eng.Store,
		Queue:     queue,
		BatchSize: 2,
	}

	for i := 0; i < 5; i++ {
		assert.NoError(eng.Store.CreateListing(ctx, &store.Listing{Title: "unscanned"}))
	}

	assert.NoError(sched.SweepOnce(ctx))
	depth, err := queue.Len(ctx)
	assert.NoError(err)
	assert.Equal(2, depth)
}

// flakyQueue fails the first few dequeues, then behaves like its inner queue.
type flakyQueue struct {
	recheckq.Queue
	mu       sync.Mutex
	failures int
}

func (q *flakyQueue) Dequeue(ctx context.Context) (*recheckq.Job, error) {
	q.mu.Lock()
	if q.failures > 0 {
		q.failures--
		q.mu.Unlock()
		return nil, errors.New("queue backend unavailable")
	}
	q.mu.Unlock()
	return q.Queue.Dequeue(ctx)
}

func TestWorkerBacksOffOnDequeueError(t *testing.T) {
	assert := assert.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng := engine.EngineTestFixture()
	queue := &flakyQueue{Queue: recheckq.NewMemQueue(), failures: 2}
	worker := &Worker{
		Logger:     slog.Default(),
		Queue:      queue,
		Engine:     eng,
		RetryDelay: 10 * time.Millisecond,
	}

	listing := &store.Listing{Title: "Classic cotton t-shirt"}
	assert.NoError(eng.Store.CreateListing(ctx, listing))
	assert.NoError(queue.Enqueue(ctx, listing.ID))

	done := make(chan error, 1)
	go func() {
		done <- worker.Run(ctx)
	}()

	// the worker survives the failed dequeues and drains the job
	assert.Eventually(func() bool {
		got, err := eng.Store.GetListing(ctx, listing.ID)
		if err != nil {
			return false
		}
		return got.LastCheckedAt != nil
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(<-done)
}

func TestWorkerProcessesJobs(t *testing.T) {
	assert := assert.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng := engine.EngineTestFixture()
	queue := recheckq.NewMemQueue()
	worker := &Worker{Logger: slog.Default(), Queue: queue, Engine: eng}

	listing := &store.Listing{Title: "Classic cotton t-shirt"}
	assert.NoError(eng.Store.CreateListing(ctx, listing))
	assert.NoError(queue.Enqueue(ctx, listing.ID))
	// a job for a listing that no longer exists is logged and dropped
	assert.NoError(queue.Enqueue(ctx, "deleted-listing"))

	done := make(chan error, 1)
	go func() {
		done <- worker.Run(ctx)
	}()

	assert.Eventually(func() bool {
		got, err := eng.Store.GetListing(ctx, listing.ID)
		if err != nil {
			return false
		}
		return got.LastCheckedAt != nil
	}, 5*time.Second, 10*time.Millisecond)

	assert.Eventually(func() bool {
		depth, err := queue.Len(ctx)
		return err == nil && depth == 0
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(<-done)
}
