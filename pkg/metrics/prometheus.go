package metrics

import (
	"EarlyPump/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	refreshTotal   *prometheus.CounterVec
	refreshLatency prometheus.Histogram
	scanFound      prometheus.Gauge
	scanLatency    prometheus.Histogram
	published      prometheus.Counter
	stored         prometheus.Counter
	errorsTotal    *prometheus.CounterVec
}

// New registers the recorder on the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the recorder on reg (tests pass a fresh registry).
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		refreshTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "earlypump_renderer_refresh_total",
				Help: "Renderer refreshes by final region state",
			},
			[]string{"state"},
		),
		refreshLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "earlypump_renderer_refresh_seconds",
			Help:    "Duration of a renderer refresh including the feed fetch",
			Buckets: prometheus.DefBuckets,
		}),
		scanFound: f.NewGauge(prometheus.GaugeOpts{
			Name: "earlypump_scan_signals",
			Help: "Signals found by the last scan",
		}),
		scanLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "earlypump_scan_seconds",
			Help:    "Duration of a ticker scan",
			Buckets: prometheus.DefBuckets,
		}),
		published: f.NewCounter(prometheus.CounterOpts{
			Name: "earlypump_signals_published_total",
			Help: "Signals published to the message bus",
		}),
		stored: f.NewCounter(prometheus.CounterOpts{
			Name: "earlypump_signals_stored_total",
			Help: "Signals written to the history store",
		}),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "earlypump_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
	}
}

func (r *Recorder) RecordRefresh(state models.RegionState, seconds float64) {
	r.refreshTotal.WithLabelValues(string(state)).Inc()
	r.refreshLatency.Observe(seconds)
}

func (r *Recorder) RecordScan(found int, seconds float64) {
	r.scanFound.Set(float64(found))
	r.scanLatency.Observe(seconds)
}

func (r *Recorder) RecordPublished(n int) { r.published.Add(float64(n)) }

func (r *Recorder) RecordStored(n int) { r.stored.Add(float64(n)) }

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// Nop discards every observation.
type Nop struct{}

func (Nop) RecordRefresh(models.RegionState, float64) {}
func (Nop) RecordScan(int, float64)                   {}
func (Nop) RecordPublished(int)                       {}
func (Nop) RecordStored(int)                          {}
func (Nop) RecordError(string)                        {}
