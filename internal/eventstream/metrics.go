package eventstream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks the event stream's own broadcast health, separate from
// the underlying cache's Statistics (internal/cachemetrics covers those).
type Metrics struct {
	ConnectionsActive prometheus.Gauge
	EventsTotal       *prometheus.CounterVec
	BroadcastDuration prometheus.Histogram
	ErrorsTotal       *prometheus.CounterVec
}

// NewMetrics constructs the event stream's Prometheus collectors under the
// given namespace, mirroring the teacher's RealtimeMetrics shape.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ConnectionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "eventstream", Name: "connections_active",
			Help: "Current number of active WebSocket subscribers to the cache event stream.",
		}),
		EventsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "eventstream", Name: "events_total",
			Help: "Total number of cache lifecycle events broadcast, by event type.",
		}, []string{"type"}),
		BroadcastDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "eventstream", Name: "broadcast_duration_seconds",
			Help:    "Time spent fanning one event out to all connected subscribers.",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		ErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "eventstream", Name: "errors_total",
			Help: "Total number of broadcast errors, by cause.",
		}, []string{"cause"}),
	}
}
