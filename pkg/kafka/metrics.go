package kafka

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsOnce sync.Once
	registerer  prometheus.Registerer = prometheus.DefaultRegisterer

	producerMessages *prometheus.CounterVec
	producerBytes    *prometheus.CounterVec
	producerLatency  *prometheus.HistogramVec
	consumerHandled  *prometheus.CounterVec
	consumerLatency  *prometheus.HistogramVec
	consumerQueue    *prometheus.GaugeVec
)

// SetMetricsRegisterer must be called before the first producer or consumer is built.
func SetMetricsRegisterer(reg prometheus.Registerer) { registerer = reg }

func initMetricsOnce() {
	metricsOnce.Do(func() {
		f := promauto.With(registerer)
		producerMessages = f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "earlypump",
				Subsystem: "kafka_producer",
				Name:      "messages_total",
				Help:      "Messages published to Kafka",
			},
			[]string{"topic", "compression", "result"},
		)
		producerBytes = f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "earlypump",
				Subsystem: "kafka_producer",
				Name:      "bytes_total",
				Help:      "Payload bytes published",
			},
			[]string{"topic"},
		)
		producerLatency = f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "earlypump",
				Subsystem: "kafka_producer",
				Name:      "publish_seconds",
				Help:      "Publish latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"topic"},
		)
		consumerHandled = f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "earlypump",
				Subsystem: "kafka_consumer",
				Name:      "messages_total",
				Help:      "Messages handled by result (ok, error)",
			},
			[]string{"topic", "result"},
		)
		consumerLatency = f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "earlypump",
				Subsystem: "kafka_consumer",
				Name:      "handle_seconds",
				Help:      "Handling time per message, retries included",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"topic"},
		)
		consumerQueue = f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "earlypump",
				Subsystem: "kafka_consumer",
				Name:      "queue_depth",
				Help:      "Messages waiting for a worker",
			},
			[]string{"topic"},
		)
	})
}

func observePublish(topic, comp string, size int64, count int, dur time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	producerMessages.WithLabelValues(topic, comp, result).Add(float64(count))
	if err == nil {
		producerBytes.WithLabelValues(topic).Add(float64(size))
	}
	producerLatency.WithLabelValues(topic).Observe(dur.Seconds())
}

func observeHandle(topic string, dur time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	consumerHandled.WithLabelValues(topic, result).Inc()
	consumerLatency.WithLabelValues(topic).Observe(dur.Seconds())
}
