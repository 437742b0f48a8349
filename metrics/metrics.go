// Package metrics exposes the backend's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SyncRuns counts historical sync attempts per platform and outcome.
	SyncRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adpulse_sync_runs_total",
		Help: "Historical sync runs by platform and status.",
	}, []string{"platform", "status"})

	// SyncRowsWritten counts insight documents written by sync jobs.
	SyncRowsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adpulse_sync_rows_written_total",
		Help: "Insight documents written by sync jobs.",
	}, []string{"platform"})

	// Aggregations counts executed aggregation plans per collection and outcome.
	Aggregations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adpulse_aggregations_total",
		Help: "Aggregation plan executions by collection and status.",
	}, []string{"collection", "status"})

	// NLQueries counts natural-language query requests per platform and outcome.
	NLQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adpulse_nl_queries_total",
		Help: "Natural-language queries by platform view and status.",
	}, []string{"platform", "status"})

	// ModelCalls counts language-model round-trips by purpose and outcome.
	ModelCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adpulse_model_calls_total",
		Help: "Language-model calls by purpose (plan, explanation) and status.",
	}, []string{"purpose", "status"})
)

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
