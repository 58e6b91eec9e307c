// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics defines the Prometheus collectors used by the search
// engine, the ingestion pipeline and the HTTP server.
//
// All recording methods are safe to call on a nil *Metrics, so components
// can take metrics as an optional dependency.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Query outcomes recorded by ObserveQuery.
const (
	OutcomeOK       = "ok"
	OutcomeEmpty    = "empty"
	OutcomeNotReady = "not_ready"
	OutcomeUpstream = "upstream_error"
	OutcomeInvalid  = "invalid"
)

// Metrics holds all Prometheus collectors for factsearch.
type Metrics struct {
	QueriesTotal        *prometheus.CounterVec
	QueryLatency        prometheus.Histogram
	ResultsCount        prometheus.Histogram
	StaleRowsTotal      prometheus.Counter
	CacheHitsTotal      prometheus.Counter
	CacheMissesTotal    prometheus.Counter
	CorpusEntries       prometheus.Gauge
	IndexVectors        prometheus.Gauge
	ReloadsTotal        *prometheus.CounterVec
	EntriesIngested     prometheus.Counter
	EmbeddingRetries    prometheus.Counter
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates all collectors and registers them with reg.
// Pass prometheus.DefaultRegisterer in binaries and a fresh
// prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factsearch_queries_total",
				Help: "Total search queries by outcome (ok, empty, not_ready, upstream_error, invalid).",
			},
			[]string{"outcome"},
		),
		QueryLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "factsearch_query_latency_seconds",
				Help:    "End to end search latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
		),
		ResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "factsearch_results_count",
				Help:    "Number of results returned per search query.",
				Buckets: []float64{0, 1, 2, 5, 10, 25, 50},
			},
		),
		StaleRowsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "factsearch_stale_rows_total",
				Help: "Neighbours dropped because their row id is outside the corpus.",
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "factsearch_cache_hits_total",
				Help: "Total number of query cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "factsearch_cache_misses_total",
				Help: "Total number of query cache misses.",
			},
		),
		CorpusEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "factsearch_corpus_entries",
				Help: "Entries in the loaded corpus.",
			},
		),
		IndexVectors: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "factsearch_index_vectors",
				Help: "Vectors in the loaded index.",
			},
		),
		ReloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factsearch_reloads_total",
				Help: "Corpus and index loads by status.",
			},
			[]string{"status"},
		),
		EntriesIngested: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "factsearch_entries_ingested_total",
				Help: "Corpus entries written by ingestion.",
			},
		),
		EmbeddingRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "factsearch_embedding_retries_total",
				Help: "Embedding batches retried after a failure.",
			},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factsearch_http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "factsearch_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
	}

	reg.MustRegister(
		m.QueriesTotal,
		m.QueryLatency,
		m.ResultsCount,
		m.StaleRowsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CorpusEntries,
		m.IndexVectors,
		m.ReloadsTotal,
		m.EntriesIngested,
		m.EmbeddingRetries,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	return m
}

// ObserveQuery records one finished query.
func (m *Metrics) ObserveQuery(outcome string, elapsed time.Duration, results int) {
	if m == nil {
		return
	}
	m.QueriesTotal.WithLabelValues(outcome).Inc()
	m.QueryLatency.Observe(elapsed.Seconds())
	if outcome == OutcomeOK || outcome == OutcomeEmpty {
		m.ResultsCount.Observe(float64(results))
	}
}

// StaleRows records neighbours dropped for pointing outside the corpus.
func (m *Metrics) StaleRows(n int) {
	if m == nil || n == 0 {
		return
	}
	m.StaleRowsTotal.Add(float64(n))
}

// CacheLookup records a query cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.Inc()
		return
	}
	m.CacheMissesTotal.Inc()
}

// Loaded records a load attempt and, on success, the snapshot sizes.
func (m *Metrics) Loaded(err error, entries, vectors int) {
	if m == nil {
		return
	}
	if err != nil {
		m.ReloadsTotal.WithLabelValues("error").Inc()
		return
	}
	m.ReloadsTotal.WithLabelValues("ok").Inc()
	m.CorpusEntries.Set(float64(entries))
	m.IndexVectors.Set(float64(vectors))
}

// Ingested records entries written by ingestion.
func (m *Metrics) Ingested(n int) {
	if m == nil {
		return
	}
	m.EntriesIngested.Add(float64(n))
}

// EmbeddingRetried records one retried embedding batch.
func (m *Metrics) EmbeddingRetried() {
	if m == nil {
		return
	}
	m.EmbeddingRetries.Inc()
}

// ObserveHTTP records one served HTTP request.
func (m *Metrics) ObserveHTTP(method, path string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// Handler returns the Prometheus scrape HTTP handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
