package sweep

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var sweepCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "vigil_sweeps",
	Help: "Number of scheduler sweeps completed.",
})

var sweepEnqueuedCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "vigil_sweep_enqueued",
	Help: "Number of stale listings enqueued for rescan by sweeps.",
})

var queueBacklog = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "vigil_recheck_backlog",
	Help: "Depth of the recheck queue as of the last sweep.",
})

var queueWait = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "vigil_recheck_wait_sec",
	Help:    "Time jobs spent queued before the worker picked them up.",
	Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
})

var jobsProcessedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vigil_recheck_jobs_processed",
	Help: "Number of rescan jobs consumed by the worker.",
}, []string{"status"})
