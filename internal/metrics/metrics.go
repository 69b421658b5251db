// Package metrics exposes Prometheus instruments for the recommendation pipeline
// and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "internship_recommender"

// Recommendation sources as reported in responses and metrics.
const (
	SourceExternal = "external"
	SourceLocal    = "local"
)

type Metrics struct {
	registry *prometheus.Registry

	Recommendations    *prometheus.CounterVec
	ScorerFailures     *prometheus.CounterVec
	ScorerDuration     *prometheus.HistogramVec
	CatalogSize        prometheus.Gauge
	HTTPRequests       *prometheus.CounterVec
	HTTPRequestSeconds *prometheus.HistogramVec
}

// New registers all instruments on a fresh registry together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Recommendations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "recommendations_total",
				Help:      "Total number of recommendation responses by source",
			},
			[]string{"source"},
		),
		ScorerFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "external_scorer_failures_total",
				Help:      "Total number of external scorer calls that fell back to local scoring",
			},
			[]string{"provider", "reason"},
		),
		ScorerDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "external_scorer_duration_seconds",
				Help:      "Duration of external scorer calls in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"provider"},
		),
		CatalogSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "catalog_records",
				Help:      "Number of catalog records read by the last local scoring pass",
			},
		),
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
		HTTPRequestSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveScorer records the outcome of one external scorer call. reason is
// empty on success.
func (m *Metrics) ObserveScorer(provider, reason string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ScorerDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
	if reason != "" {
		m.ScorerFailures.WithLabelValues(provider, reason).Inc()
	}
}

func (m *Metrics) ObserveRecommendation(source string) {
	if m == nil {
		return
	}
	m.Recommendations.WithLabelValues(source).Inc()
}

func (m *Metrics) ObserveCatalog(size int) {
	if m == nil {
		return
	}
	m.CatalogSize.Set(float64(size))
}

func (m *Metrics) ObserveHTTP(route string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.HTTPRequestSeconds.WithLabelValues(route).Observe(elapsed.Seconds())
}
