package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	FetchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "stockcast",
			Subsystem: "market",
			Name:      "fetch_seconds",
			Help:      "Latency of daily bar fetches by source",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	FetchErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stockcast",
			Subsystem: "market",
			Name:      "fetch_errors_total",
			Help:      "Failed fetches by source",
		},
		[]string{"source"},
	)

	FallbackUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stockcast",
			Subsystem: "market",
			Name:      "fallback_total",
			Help:      "Fetches served by a source other than the first in the chain",
		},
		[]string{"source"},
	)

	ActiveStreams = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "stockcast",
			Subsystem: "ws",
			Name:      "active_streams",
			Help:      "Open forecast websocket streams",
		},
	)
)

// Register adds the collectors to the default registry. Safe to call twice.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(FetchLatency, FetchErrors, FallbackUsed, ActiveStreams)
	})
}
