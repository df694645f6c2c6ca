// Package metrics defines the Prometheus collectors for the belief engine and
// the memory index. All names are prefixed with "credo_".
//
// Metrics:
//   - credo_stance_updates_total{trigger,outcome} - stance mutations by cause and result
//   - credo_evidence_appended_total{strength} - evidence links written
//   - credo_interactions_logged_total{type} - interactions ingested
//   - credo_embeddings_total{outcome} - embedding calls
//   - credo_memory_search_duration_seconds - SearchHistory latency
//   - credo_index_rebuilds_total{outcome} - index rebuilds
//   - credo_index_rebuild_duration_seconds - rebuild latency
//   - credo_index_flushes_total - snapshots written by the flusher
//   - credo_consistency_verdicts_total{action} - verdicts received
//   - credo_http_requests_total{method,route,status} - API requests
//   - credo_http_request_duration_seconds{method,route} - API latency
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	StanceUpdates      *prometheus.CounterVec
	EvidenceAppended   *prometheus.CounterVec
	InteractionsLogged *prometheus.CounterVec
	Embeddings         *prometheus.CounterVec
	SearchDuration     prometheus.Histogram
	IndexRebuilds      *prometheus.CounterVec
	RebuildDuration    prometheus.Histogram
	IndexFlushes       prometheus.Counter
	Verdicts           *prometheus.CounterVec
	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
}

// New registers the collectors with reg. Tests pass a fresh
// prometheus.NewRegistry() so repeated construction does not collide.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		StanceUpdates: f.NewCounterVec(prometheus.CounterOpts{
			Name: "credo_stance_updates_total",
			Help: "Stance mutations by trigger and outcome",
		}, []string{"trigger", "outcome"}),
		EvidenceAppended: f.NewCounterVec(prometheus.CounterOpts{
			Name: "credo_evidence_appended_total",
			Help: "Evidence links appended by strength",
		}, []string{"strength"}),
		InteractionsLogged: f.NewCounterVec(prometheus.CounterOpts{
			Name: "credo_interactions_logged_total",
			Help: "Interactions ingested by type",
		}, []string{"type"}),
		Embeddings: f.NewCounterVec(prometheus.CounterOpts{
			Name: "credo_embeddings_total",
			Help: "Embedding calls by outcome",
		}, []string{"outcome"}),
		SearchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "credo_memory_search_duration_seconds",
			Help:    "Latency of episodic memory searches",
			Buckets: prometheus.DefBuckets,
		}),
		IndexRebuilds: f.NewCounterVec(prometheus.CounterOpts{
			Name: "credo_index_rebuilds_total",
			Help: "Index rebuilds by outcome",
		}, []string{"outcome"}),
		RebuildDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "credo_index_rebuild_duration_seconds",
			Help:    "Duration of index rebuilds",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		IndexFlushes: f.NewCounter(prometheus.CounterOpts{
			Name: "credo_index_flushes_total",
			Help: "Index snapshots written by the periodic flusher",
		}),
		Verdicts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "credo_consistency_verdicts_total",
			Help: "Consistency verdicts by resulting action",
		}, []string{"action"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "credo_http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "credo_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// NewNop returns collectors registered nowhere.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
