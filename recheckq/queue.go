package recheckq

import (
	"context"
	"time"
)

// A single queued rescan request. Consumed exactly once by the worker.
// Duplicate entries for the same listing are harmless: the listing just gets
// scanned again with whatever data it has at dequeue time.
type Job struct {
	ListingID  string    `json:"listing_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Queue is an unbounded FIFO of listing rescan jobs. Producers are the
// scheduler and listing create/update hooks; the worker is the single
// consumer.
type Queue interface {
	Enqueue(ctx context.Context, listingID string) error
	// Dequeue blocks until a job is available or ctx is done.
	Dequeue(ctx context.Context) (*Job, error)
	Len(ctx context.Context) (int, error)
}
