package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Transition outcomes recorded on sos_transitions_total.
const (
	OutcomeApplied  = "applied"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid
// and records nothing, so callers never need to guard it.
type Metrics struct {
	requestsCreated prometheus.Counter
	transitions     *prometheus.CounterVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	cacheHitsTotal   *prometheus.CounterVec
	cacheMissesTotal *prometheus.CounterVec
}

// New registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		requestsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "sos_requests_created_total",
			Help: "Total number of SOS requests raised by patients",
		}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sos_transitions_total",
			Help: "SOS lifecycle transition attempts by transition and outcome",
		}, []string{"transition", "outcome"}),

		httpRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),

		cacheHitsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		}, []string{"cache_type"}),
		cacheMissesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		}, []string{"cache_type"}),
	}
}

func (m *Metrics) SOSCreated() {
	if m == nil {
		return
	}
	m.requestsCreated.Inc()
}

// Transition records one accept or resolve attempt.
func (m *Metrics) Transition(name, outcome string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(name, outcome).Inc()
}

// ObserveHTTP records a finished request. path is the route template, not the
// raw URL, to keep label cardinality bounded.
func (m *Metrics) ObserveHTTP(method, path string, status int, took time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(took.Seconds())
}

func (m *Metrics) CacheHit(cacheType string) {
	if m == nil {
		return
	}
	m.cacheHitsTotal.WithLabelValues(cacheType).Inc()
}

func (m *Metrics) CacheMiss(cacheType string) {
	if m == nil {
		return
	}
	m.cacheMissesTotal.WithLabelValues(cacheType).Inc()
}

// Handler exposes the collectors gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
