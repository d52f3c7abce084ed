package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var scanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "vigil_scan_duration_sec",
	Help: "Total duration of listing scan processing",
})

var scanProcessedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vigil_scans_processed",
	Help: "Number of listing scans processed",
}, []string{"outcome"})

var agentFindingCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vigil_agent_findings",
	Help: "Number of domain agent findings produced",
}, []string{"agent", "grounded"})

var retrievalErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vigil_retrieval_errors",
	Help: "Number of embedding or rule retrieval failures",
}, []string{"agent"})

var judgeFallbackCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vigil_judge_fallbacks",
	Help: "Number of judge failures replaced by a default verdict",
}, []string{"stage"})

var listingFlaggedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vigil_listings_flagged",
	Help: "Number of listings flagged by escalation",
}, []string{"severity"})

var alertSentCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vigil_alerts_sent",
	Help: "Number of alerts dispatched to notifiers",
}, []string{"tier"})

var alertSuppressedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vigil_alerts_suppressed",
	Help: "Number of alerts suppressed by dedupe or quota",
}, []string{"reason"})
