package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SubmissionsTotal counts accepted submissions by resource class.
	SubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stashkeeper_submissions_total",
		Help: "Total number of accepted request submissions by resource class",
	}, []string{"class"})

	// TransitionsTotal counts lifecycle transitions by kind.
	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stashkeeper_transitions_total",
		Help: "Total number of request lifecycle transitions",
	}, []string{"transition"})

	// RecomputesTotal counts queue position recomputes by resource key.
	RecomputesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stashkeeper_queue_recomputes_total",
		Help: "Total number of per-resource queue recomputes",
	}, []string{"resource"})

	// RowStoreLatency records row-store call latency by operation.
	RowStoreLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stashkeeper_rowstore_latency_seconds",
		Help:    "Row store call latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// RowStoreRetries counts retried row-store calls by operation.
	RowStoreRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stashkeeper_rowstore_retries_total",
		Help: "Total number of row store retry attempts",
	}, []string{"operation"})

	// SessionsOpen is the gauge of in-flight submission sessions.
	SessionsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stashkeeper_sessions_open",
		Help: "Number of currently open submission sessions",
	})

	// SessionsExpiredTotal counts sessions closed by the idle timeout.
	SessionsExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stashkeeper_sessions_expired_total",
		Help: "Total number of submission sessions closed by timeout",
	})
)

// TrackRowStoreCall returns a function that records call latency when called
// (e.g. defer).
func TrackRowStoreCall(operation string) func() {
	start := time.Now()
	return func() {
		RowStoreLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
