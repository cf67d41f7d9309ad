package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the sync engine.
type Metrics struct {
	registry *prometheus.Registry

	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	FetchesTotal  *prometheus.CounterVec // labels: upstream, outcome
	FetchDuration *prometheus.HistogramVec

	FallbacksTotal prometheus.Counter

	RefreshDuration *prometheus.HistogramVec // labels: task
	RefreshSkipped  *prometheus.CounterVec   // labels: task

	SettingsSaves *prometheus.CounterVec // labels: outcome
}

// New registers and returns all collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dashsync_cache_hits_total",
			Help: "Quote cache hits",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dashsync_cache_misses_total",
			Help: "Quote cache misses",
		}),
		FetchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dashsync_fetches_total",
			Help: "Upstream fetches by outcome",
		}, []string{"upstream", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dashsync_fetch_duration_seconds",
			Help:    "Upstream fetch latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"upstream"}),
		FallbacksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dashsync_fallback_quotes_total",
			Help: "Quotes served from the fallback synthesizer",
		}),
		RefreshDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dashsync_refresh_duration_seconds",
			Help:    "Scheduler task run duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"task"}),
		RefreshSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dashsync_refresh_skipped_total",
			Help: "Scheduler ticks skipped because the previous run was still in flight",
		}, []string{"task"}),
		SettingsSaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dashsync_settings_saves_total",
			Help: "Settings save attempts by outcome",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(
		m.CacheHits, m.CacheMisses,
		m.FetchesTotal, m.FetchDuration,
		m.FallbacksTotal,
		m.RefreshDuration, m.RefreshSkipped,
		m.SettingsSaves,
	)
	return m
}

// Handler serves the registry for /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
