// Package metrics exposes query and ingestion counters on a private
// Prometheus registry. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Query outcomes.
const (
	OutcomeAnswered  = "answered"
	OutcomeNoContext = "no_context"
	OutcomeFailed    = "failed"
)

type Metrics struct {
	registry       *prometheus.Registry
	queries        *prometheus.CounterVec
	queryDuration  prometheus.Histogram
	ingestedChunks prometheus.Counter
	ingestFailures prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "askdocs_queries_total",
			Help: "Questions handled, by outcome.",
		}, []string{"outcome"}),
		queryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "askdocs_query_duration_seconds",
			Help:    "End-to-end question latency.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		ingestedChunks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "askdocs_ingested_chunks_total",
			Help: "Chunks written to the vector index.",
		}),
		ingestFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "askdocs_ingest_failures_total",
			Help: "Documents skipped during ingestion.",
		}),
	}
	m.registry.MustRegister(m.queries, m.queryDuration, m.ingestedChunks, m.ingestFailures)
	return m
}

func (m *Metrics) ObserveQuery(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(outcome).Inc()
	m.queryDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) AddIngested(chunks int) {
	if m == nil {
		return
	}
	m.ingestedChunks.Add(float64(chunks))
}

func (m *Metrics) IngestFailed() {
	if m == nil {
		return
	}
	m.ingestFailures.Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}
