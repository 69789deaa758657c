package oauth2client

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Fetch error kinds used as the "kind" label of fetch_errors_total.
const (
	errorKindConfig    = "config"
	errorKindTransport = "transport"
	errorKindHTTP      = "http"
	errorKindMalformed = "malformed"
)

// Metrics holds Prometheus collectors for token caching and fetching.
// A nil *Metrics records nothing.
type Metrics struct {
	cacheHits     prometheus.Counter
	cacheMisses   prometheus.Counter
	cacheErrors   *prometheus.CounterVec
	fetches       prometheus.Counter
	fetchErrors   *prometheus.CounterVec
	fetchDuration prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "edx_rest_api_client",
			Subsystem: "token_cache",
			Name:      "hits_total",
			Help:      "Total number of access tokens served from the cache",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "edx_rest_api_client",
			Subsystem: "token_cache",
			Name:      "misses_total",
			Help:      "Total number of cache lookups that required a fetch",
		}),
		cacheErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "edx_rest_api_client",
			Subsystem: "token_cache",
			Name:      "errors_total",
			Help:      "Total number of cache backend failures",
		}, []string{"operation"}),
		fetches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "edx_rest_api_client",
			Subsystem: "token",
			Name:      "fetches_total",
			Help:      "Total number of token endpoint requests",
		}),
		fetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "edx_rest_api_client",
			Subsystem: "token",
			Name:      "fetch_errors_total",
			Help:      "Total number of failed token endpoint requests",
		}, []string{"kind"}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "edx_rest_api_client",
			Subsystem: "token",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of token endpoint requests",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.cacheHits,
			m.cacheMisses,
			m.cacheErrors,
			m.fetches,
			m.fetchErrors,
			m.fetchDuration,
		)
	}
	return m
}

func (m *Metrics) hit() {
	if m != nil {
		m.cacheHits.Inc()
	}
}

func (m *Metrics) miss() {
	if m != nil {
		m.cacheMisses.Inc()
	}
}

func (m *Metrics) cacheError(op string) {
	if m != nil {
		m.cacheErrors.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) fetched(d time.Duration) {
	if m != nil {
		m.fetches.Inc()
		m.fetchDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) fetchError(kind string) {
	if m != nil {
		m.fetchErrors.WithLabelValues(kind).Inc()
	}
}
