package observability

import (
	"time"

	"github.com/boddenberg/profile-bff-go/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
	dto "github.com/prometheus/client_model/go"
)

// Lookup outcomes as recorded by RecordLookup.
const (
	LookupResolved = "resolved"
	LookupNotFound = "not_found"
	LookupFailed   = "failed"
	LookupCached   = "cached"
)

// Submission outcomes as recorded by RecordSubmit.
const (
	SubmitAccepted = "accepted"
	SubmitRejected = "rejected"
	SubmitFailed   = "failed"
)

// Metrics holds all Prometheus metrics for the BFF.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	lookups         *prometheus.CounterVec
	staleLookups    prometheus.Counter
	submissions     *prometheus.CounterVec
	openForms       prometheus.Gauge
	breakerState    *prometheus.GaugeVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bff_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bff_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bff_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bff_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		lookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bff_postal_code_lookups_total",
				Help: "Postal-code lookups by outcome.",
			},
			[]string{"outcome"},
		),
		staleLookups: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bff_postal_code_stale_total",
				Help: "Lookup outcomes dropped because the postal code changed meanwhile.",
			},
		),
		submissions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bff_form_submissions_total",
				Help: "Form submissions by form kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		openForms: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "bff_forms_opened_active",
				Help: "Forms opened and not yet submitted or closed by this instance.",
			},
		),
		breakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bff_circuit_breaker_state",
				Help: "Circuit breaker state: 0 closed, 1 half-open, 2 open.",
			},
			[]string{"breaker"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// CacheObserver adapts the hit/miss counters of cache name to a cache
// observer callback.
func (m *Metrics) CacheObserver(name string) func(hit bool) {
	return func(hit bool) {
		if hit {
			m.IncrCacheHit(name)
			return
		}
		m.IncrCacheMiss(name)
	}
}

// RecordLookup counts one postal-code lookup outcome.
func (m *Metrics) RecordLookup(outcome string) {
	m.lookups.WithLabelValues(outcome).Inc()
}

// IncrStaleLookup counts a suppressed stale lookup outcome.
func (m *Metrics) IncrStaleLookup() {
	m.staleLookups.Inc()
}

// RecordSubmit counts one submission attempt.
func (m *Metrics) RecordSubmit(kind, outcome string) {
	m.submissions.WithLabelValues(kind, outcome).Inc()
}

// FormOpened and FormClosed track forms held by this instance.
func (m *Metrics) FormOpened() { m.openForms.Inc() }
func (m *Metrics) FormClosed() { m.openForms.Dec() }

// ObserveBreaker records a breaker transition; it matches
// resilience.StateObserver.
func (m *Metrics) ObserveBreaker(name string, _, to gobreaker.State) {
	m.breakerState.WithLabelValues(name).Set(float64(to))
}

// GetFormSnapshot returns a snapshot of form and lookup metrics suitable
// for the GET /v1/metrics/forms endpoint.
func (m *Metrics) GetFormSnapshot() *domain.FormMetrics {
	// Prometheus counters expose cumulative values.
	hits := getCounterValue(m.cacheHits, "postal_code")
	misses := getCounterValue(m.cacheMisses, "postal_code")

	hitRate := float64(0)
	if hits+misses > 0 {
		hitRate = hits / (hits + misses)
	}

	return &domain.FormMetrics{
		LookupsResolved:    int64(getCounterValue(m.lookups, LookupResolved) + getCounterValue(m.lookups, LookupCached)),
		LookupsFailed:      int64(getCounterValue(m.lookups, LookupFailed)),
		LookupsNotFound:    int64(getCounterValue(m.lookups, LookupNotFound)),
		StaleSuppressed:    int64(counterValue(m.staleLookups)),
		SubmitsAccepted:    int64(sumByOutcome(m.submissions, SubmitAccepted)),
		SubmitsRejected:    int64(sumByOutcome(m.submissions, SubmitRejected)),
		SubmitsFailed:      int64(sumByOutcome(m.submissions, SubmitFailed)),
		PostalCacheHitRate: hitRate,
		Period:             "all_time",
	}
}

func sumByOutcome(cv *prometheus.CounterVec, outcome string) float64 {
	return getCounterValue(cv, "profile", outcome) + getCounterValue(cv, "address", outcome)
}

// getCounterValue extracts the current float64 value from a CounterVec for the given labels.
func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	return counterValue(cv.WithLabelValues(labels...))
}

func counterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
