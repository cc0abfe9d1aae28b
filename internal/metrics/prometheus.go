// Package metrics exposes Prometheus metrics for the weather facade.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Manager owns the service's collectors. It satisfies weather.Metrics.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	providerRequests *prometheus.CounterVec
	cacheResults     *prometheus.CounterVec
	lookupDuration   prometheus.Histogram
	cacheEntries     prometheus.Gauge
}

// NewManager creates a Manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "weather",
		subsystem:        "facade",
		histogramBuckets: prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}

	m.providerRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "provider_requests_total",
		Help:      "Upstream provider calls by outcome (record, empty, error, fault).",
	}, []string{"provider", "outcome"})

	m.cacheResults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cache_results_total",
		Help:      "Lookups by cache result (hit, miss, stale, cold_failure).",
	}, []string{"result"})

	m.lookupDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "lookup_duration_seconds",
		Help:      "Time spent answering a weather lookup, including provider calls.",
		Buckets:   m.histogramBuckets,
	})

	m.cacheEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cache_entries",
		Help:      "Number of cached readings.",
	})

	m.registry.MustRegister(m.providerRequests, m.cacheResults, m.lookupDuration, m.cacheEntries)
	return m
}

// Registry returns the registry the collectors are registered with.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Manager) ProviderOutcome(provider, outcome string) {
	m.providerRequests.WithLabelValues(provider, outcome).Inc()
}

func (m *Manager) CacheResult(result string) {
	m.cacheResults.WithLabelValues(result).Inc()
}

func (m *Manager) ObserveLookup(d time.Duration) {
	m.lookupDuration.Observe(d.Seconds())
}

func (m *Manager) CacheEntries(n int) {
	m.cacheEntries.Set(float64(n))
}
