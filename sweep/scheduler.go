package sweep

import (
	"context"
	"log/slog"
	"time"

	"github.com/oakmarket/vigil/recheckq"
	"github.com/oakmarket/vigil/store"
)

// Scheduler periodically sweeps the listings table for stale records and
// enqueues them for rescan. It never scans anything itself; the worker owns
// execution. Selection is read-only, so an overlapping sweep would enqueue
// duplicates rather than lose listings, and duplicates are harmless.
type Scheduler struct {
	Logger *slog.Logger
	Store  *store.Store
	Queue  recheckq.Queue

	// Interval between sweeps. Zero means one hour.
	Interval time.Duration
	// MaxAge before a scanned listing counts as stale. Zero means 24 hours.
	MaxAge time.Duration
	// BatchSize caps listings enqueued per sweep. Zero means 100.
	BatchSize int
}

func (s *Scheduler) interval() time.Duration {
	if s.Interval <= 0 {
		return time.Hour
	}
	return s.Interval
}

func (s *Scheduler) maxAge() time.Duration {
	if s.MaxAge <= 0 {
		return 24 * time.Hour
	}
	return s.MaxAge
}

func (s *Scheduler) batchSize() int {
	if s.BatchSize <= 0 {
		return 100
	}
	return s.BatchSize
}

// Run sweeps immediately, then on every tick, until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Logger.Info("scheduler starting",
		"interval", s.interval(),
		"maxAge", s.maxAge(),
		"batchSize", s.batchSize(),
	)

	ticker := time.NewTicker(s.interval())
	defer ticker.Stop()
	for {
		if err := s.SweepOnce(ctx); err != nil {
			s.Logger.Error("sweep failed", "err", err)
		}
		select {
		case <-ctx.Done():
			s.Logger.Info("scheduler shutting down")
			return nil
		case <-ticker.C:
		}
	}
}

// SweepOnce selects one batch of stale listings and enqueues them.
func (s *Scheduler) SweepOnce(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-s.maxAge())
	listings, err := s.Store.StaleListings(ctx, cutoff, s.batchSize())
	if err != nil {
		return err
	}

	enqueued := 0
	for _, l := range listings {
		if err := s.Queue.Enqueue(ctx, l.ID); err != nil {
			s.Logger.Error("enqueue failed", "err", err, "listing", l.ID)
			continue
		}
		enqueued++
	}
	sweepCount.Inc()
	sweepEnqueuedCount.Add(float64(enqueued))
	if depth, err := s.Queue.Len(ctx); err == nil {
		queueBacklog.Set(float64(depth))
	}

	s.Logger.Info("sweep complete", "stale", len(listings), "enqueued", enqueued)
	return nil
}
