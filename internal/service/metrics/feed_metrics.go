package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	FeedLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "earlypump",
			Subsystem: "feed",
			Name:      "latency_seconds",
			Help:      "Latency of feed endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	FeedCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "earlypump",
			Subsystem: "feed",
			Name:      "cache_total",
			Help:      "Feed cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)

	FeedErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "earlypump",
			Subsystem: "feed",
			Name:      "errors_total",
			Help:      "Errors by feed endpoint",
		},
		[]string{"endpoint"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(FeedLatency, FeedCache, FeedErrors)
	})
}
