// Package observability owns the process logger and the prometheus
// metrics exposed on the management HTTP surface.
package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Answer path labels.
const (
	PathSocket      = "socket"
	PathServerError = "server_error"
	PathFallback    = "fallback"
)

var (
	registerOnce sync.Once

	gatewayRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "graphgate",
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Gateway answers by resolution path.",
		},
		[]string{"path"},
	)
	gatewayDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "graphgate",
			Subsystem: "gateway",
			Name:      "request_duration_seconds",
			Help:      "Gateway answer latency by resolution path.",
			Buckets:   []float64{.05, .25, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"path"},
	)
	probeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "graphgate",
			Subsystem: "health",
			Name:      "probe_duration_seconds",
			Help:      "Health probe round-trip latency.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// RegisterMetrics registers all collectors with the default registry.
// Safe to call more than once.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(gatewayRequests, gatewayDuration, probeDuration)
	})
}

// RecordAnswer records one gateway answer and its latency.
func RecordAnswer(path string, duration time.Duration) {
	gatewayRequests.WithLabelValues(path).Inc()
	gatewayDuration.WithLabelValues(path).Observe(duration.Seconds())
}

// RecordProbe records one health probe round trip.
func RecordProbe(duration time.Duration) {
	probeDuration.Observe(duration.Seconds())
}
