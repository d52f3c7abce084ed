package recheckq

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemQueueFIFO(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	q := NewMemQueue()
	n, err := q.Len(ctx)
	assert.NoError(err)
	assert.Equal(0, n)

	assert.NoError(q.Enqueue(ctx, "one"))
	assert.NoError(q.Enqueue(ctx, "two"))
	assert.NoError(q.Enqueue(ctx, "three"))

	for _, want := range []string{"one", "two", "three"} {
		job, err := q.Dequeue(ctx)
		require.NoError(t, err)
		assert.Equal(want, job.ListingID)
		assert.False(job.EnqueuedAt.IsZero())
	}

	n, err = q.Len(ctx)
	assert.NoError(err)
	assert.Equal(0, n)
}

func TestMemQueueDuplicatesTolerated(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	q := NewMemQueue()
	assert.NoError(q.Enqueue(ctx, "same"))
	assert.NoError(q.Enqueue(ctx, "same"))

	n, _ := q.Len(ctx)
	assert.Equal(2, n)
}

func TestMemQueueDequeueBlocksUntilEnqueue(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	q := NewMemQueue()
	got := make(chan string, 1)
	go func() {
		job, err := q.Dequeue(ctx)
		if err == nil {
			got <- job.ListingID
		}
	}()

	time.Sleep(10 * time.Millisecond)
	assert.NoError(q.Enqueue(ctx, "late"))

	select {
	case id := <-got:
		assert.Equal("late", id)
	case <-time.After(2 * time.Second):
		t.Fatal("dequeue did not wake")
	}
}

func TestMemQueueDequeueCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	q := NewMemQueue()
	errCh := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(ctx)
		errCh <- err
	}()

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("dequeue did not observe cancellation")
	}
}
