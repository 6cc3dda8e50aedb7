package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "giveboard",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Reads served from a cached record.",
	}, []string{"resource"})

	cacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "giveboard",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Reads that had to wait for the first fetch.",
	}, []string{"resource"})

	fetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "giveboard",
		Subsystem: "cache",
		Name:      "fetch_errors_total",
		Help:      "Failed fetches from the giveaway backend.",
	}, []string{"resource"})

	fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "giveboard",
		Subsystem: "cache",
		Name:      "fetch_duration_seconds",
		Help:      "Latency of fetches from the giveaway backend.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"resource"})
)
