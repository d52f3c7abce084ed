package aiclient

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var embedCacheHits = promauto.NewCounter(prometheus.CounterOpts{
	Name: "vigil_embed_cache_hits",
	Help: "Number of embedding requests served from the local cache.",
})

var embedCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
	Name: "vigil_embed_cache_misses",
	Help: "Number of embedding requests sent to the inference API.",
})
