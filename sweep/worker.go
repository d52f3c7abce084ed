package sweep

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oakmarket/vigil/engine"
	"github.com/oakmarket/vigil/recheckq"
)

// Worker consumes rescan jobs one at a time and runs the scan pipeline for
// each. A failed scan is logged and dropped; the listing's watermark was not
// advanced, so the next scheduler sweep picks it up again.
type Worker struct {
	Logger *slog.Logger
	Queue  recheckq.Queue
	Engine *engine.Engine

	// RetryDelay is the pause after a failed dequeue, so a down queue backend
	// does not spin the loop. Zero means one second.
	RetryDelay time.Duration
}

func (w *Worker) retryDelay() time.Duration {
	if w.RetryDelay <= 0 {
		return time.Second
	}
	return w.RetryDelay
}

// Run consumes jobs until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	w.Logger.Info("worker starting")
	for {
		job, err := w.Queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				w.Logger.Info("worker shutting down")
				return nil
			}
			w.Logger.Error("dequeue failed", "err", err)
			select {
			case <-ctx.Done():
				w.Logger.Info("worker shutting down")
				return nil
			case <-time.After(w.retryDelay()):
			}
			continue
		}

		queueWait.Observe(time.Since(job.EnqueuedAt).Seconds())
		if err := w.Engine.ProcessListing(ctx, job.ListingID); err != nil {
			jobsProcessedCount.WithLabelValues("error").Inc()
			w.Logger.Error("scan failed, listing stays stale", "err", err, "listing", job.ListingID)
			continue
		}
		jobsProcessedCount.WithLabelValues("ok").Inc()
	}
}
