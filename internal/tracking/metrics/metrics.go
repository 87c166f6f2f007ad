package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the tracking pipeline.
type Metrics struct {
	LiveWritesTotal    prometheus.Counter
	DirectWritesTotal  prometheus.Counter
	HistoryReadsTotal  prometheus.Counter
	LastKnownMissTotal prometheus.Counter
}

// New creates and registers all tracking metrics.
func New() *Metrics {
	return &Metrics{
		LiveWritesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rumbo_tracking_live_writes_total",
			Help: "Total number of live location cache writes",
		}),
		DirectWritesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rumbo_tracking_direct_writes_total",
			Help: "Total number of direct durable location writes",
		}),
		HistoryReadsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rumbo_tracking_history_reads_total",
			Help: "Total number of history queries served",
		}),
		LastKnownMissTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rumbo_tracking_last_known_miss_total",
			Help: "Total number of last-known queries with no record for the subject",
		}),
	}
}
