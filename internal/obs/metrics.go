package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry      *prometheus.Registry
	lookups       *prometheus.CounterVec
	writes        *prometheus.CounterVec
	evictions     *prometheus.CounterVec
	recoveries    *prometheus.CounterVec
	durableErrors *prometheus.CounterVec
	entries       prometheus.Gauge
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	lookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "boardcache_lookups_total",
		Help: "Total cache lookups",
	}, []string{"result"})

	writes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "boardcache_writes_total",
		Help: "Total cache writes by durable outcome",
	}, []string{"outcome"})

	evictions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "boardcache_evictions_total",
		Help: "Total entries removed from the cache",
	}, []string{"reason"})

	recoveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "boardcache_recoveries_total",
		Help: "Total full cache resets",
	}, []string{"reason"})

	durableErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "boardcache_durable_errors_total",
		Help: "Total durable store errors",
	}, []string{"op"})

	entries := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "boardcache_entries",
		Help: "Entries currently held in memory",
	})

	registry.MustRegister(lookups, writes, evictions, recoveries, durableErrors, entries)

	return &Metrics{
		registry:      registry,
		lookups:       lookups,
		writes:        writes,
		evictions:     evictions,
		recoveries:    recoveries,
		durableErrors: durableErrors,
		entries:       entries,
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) RecordLookup(result string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(defaultString(result, "unknown")).Inc()
}

func (m *Metrics) RecordWrite(outcome string) {
	if m == nil {
		return
	}
	m.writes.WithLabelValues(defaultString(outcome, "unknown")).Inc()
}

func (m *Metrics) RecordEviction(reason string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.evictions.WithLabelValues(defaultString(reason, "unknown")).Add(float64(count))
}

func (m *Metrics) RecordRecovery(reason string) {
	if m == nil {
		return
	}
	m.recoveries.WithLabelValues(defaultString(reason, "unknown")).Inc()
}

func (m *Metrics) RecordDurableError(op string) {
	if m == nil {
		return
	}
	m.durableErrors.WithLabelValues(defaultString(op, "unknown")).Inc()
}

func (m *Metrics) SetEntries(count int) {
	if m == nil {
		return
	}
	m.entries.Set(float64(count))
}
