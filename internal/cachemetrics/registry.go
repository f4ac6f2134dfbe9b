// Package cachemetrics exposes the cache's StatisticsCalculator counter
// bundle (spec.md L8) as Prometheus metrics, separate from the in-process
// Statistics struct itself so pkg/cachecore stays free of an observability
// dependency.
package cachemetrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vitaliisemenov/cachecore/pkg/cachecore"
)

// Registry is the Prometheus-backed counter bundle for one named cache
// instance. Create one per Cache via Registry.ForCache; registration is
// idempotent per cache name.
type Registry struct {
	namespace string

	mu     sync.Mutex
	caches map[string]*CacheMetrics
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the global singleton Registry, initialized once
// on first use.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry("cachecore")
	})
	return defaultRegistry
}

// NewRegistry creates a Registry under the given Prometheus namespace.
func NewRegistry(namespace string) *Registry {
	if namespace == "" {
		namespace = "cachecore"
	}
	return &Registry{namespace: namespace, caches: make(map[string]*CacheMetrics)}
}

// ForCache returns the CacheMetrics for the named cache instance,
// lazily registering its Prometheus collectors on first call.
func (r *Registry) ForCache(name string) *CacheMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.caches[name]; ok {
		return m
	}
	m := newCacheMetrics(r.namespace, name)
	r.caches[name] = m
	return m
}

// CacheMetrics mirrors pkg/cachecore.Statistics with Prometheus
// collectors, plus the dispatcher/evictor-internal counters the
// in-process Statistics bundle does not track (queue depth, drops).
//
// alert_history_infra_cache_* in the teacher's pkg/metrics/infra.go is the
// naming convention this mirrors, with namespace/subsystem swapped for
// this module's own domain.
type CacheMetrics struct {
	HitsTotal        prometheus.Counter
	MissesTotal      prometheus.Counter
	PutsTotal        prometheus.Counter
	RemovalsTotal    prometheus.Counter
	EvictionsTotal   prometheus.Counter
	ExpirationsTotal prometheus.Counter

	DispatchDroppedTotal  *prometheus.CounterVec
	DispatchTimedOutTotal *prometheus.CounterVec
	DispatchQueueDepth    *prometheus.GaugeVec

	EntriesCurrent prometheus.Gauge

	WriterErrorsTotal *prometheus.CounterVec
	LoaderErrorsTotal prometheus.Counter
}

func newCacheMetrics(namespace, cacheName string) *CacheMetrics {
	constLabels := prometheus.Labels{"cache": cacheName}
	return &CacheMetrics{
		HitsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "cache",
			Name:        "hits_total",
			Help:        "Total number of cache read hits.",
			ConstLabels: constLabels,
		}),
		MissesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "misses_total",
			Help: "Total number of cache read misses.", ConstLabels: constLabels,
		}),
		PutsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "puts_total",
			Help: "Total number of CREATED/CHANGED classifications.", ConstLabels: constLabels,
		}),
		RemovalsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "removals_total",
			Help: "Total number of user-initiated REMOVED classifications.", ConstLabels: constLabels,
		}),
		EvictionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "evictions_total",
			Help: "Total number of entries removed by the background Evictor due to capacity.", ConstLabels: constLabels,
		}),
		ExpirationsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "expirations_total",
			Help: "Total number of entries removed due to TTL, whether observed on read or swept.", ConstLabels: constLabels,
		}),
		DispatchDroppedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache_dispatch", Name: "dropped_total",
			Help: "Total number of ASYNC_TIMED events dropped because the per-listener queue was full.", ConstLabels: constLabels,
		}, []string{"listener_id"}),
		DispatchTimedOutTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache_dispatch", Name: "timed_out_total",
			Help: "Total number of ASYNC_TIMED deliveries abandoned after exceeding the listener's timeout.", ConstLabels: constLabels,
		}, []string{"listener_id"}),
		DispatchQueueDepth: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "cache_dispatch", Name: "queue_depth",
			Help: "Current depth of a listener's ASYNC_TIMED delivery queue.", ConstLabels: constLabels,
		}, []string{"listener_id"}),
		EntriesCurrent: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "cache", Name: "entries_current",
			Help: "Approximate number of live entries in the store.", ConstLabels: constLabels,
		}),
		WriterErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache_writer", Name: "errors_total",
			Help: "Total number of CacheWriterException occurrences by operation.", ConstLabels: constLabels,
		}, []string{"op"}),
		LoaderErrorsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache_loader", Name: "errors_total",
			Help: "Total number of CacheLoaderException occurrences.", ConstLabels: constLabels,
		}),
	}
}

// Sync copies a point-in-time Statistics snapshot onto the Prometheus
// counters. Counters only move forward, so Sync tracks the delta against
// the last observed snapshot rather than re-adding the cumulative total.
func (m *CacheMetrics) Sync(prev, cur cachecore.Snapshot) {
	addDelta(m.HitsTotal, prev.Hits, cur.Hits)
	addDelta(m.MissesTotal, prev.Misses, cur.Misses)
	addDelta(m.PutsTotal, prev.Puts, cur.Puts)
	addDelta(m.RemovalsTotal, prev.Removals, cur.Removals)
	addDelta(m.EvictionsTotal, prev.Evictions, cur.Evictions)
	addDelta(m.ExpirationsTotal, prev.Expirations, cur.Expirations)
}

func addDelta(c prometheus.Counter, prev, cur uint64) {
	if cur > prev {
		c.Add(float64(cur - prev))
	}
}
