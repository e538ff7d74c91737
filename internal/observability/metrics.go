package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	embeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schemapilot_embedding_requests_total",
			Help: "Total number of embedding API requests by outcome.",
		},
		[]string{"outcome"},
	)
	embeddingLatencySeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "schemapilot_embedding_latency_seconds",
			Help:    "Embedding API request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
	completionRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schemapilot_completion_requests_total",
			Help: "Total number of chat completion API requests by outcome.",
		},
		[]string{"outcome"},
	)
	completionLatencySeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "schemapilot_completion_latency_seconds",
			Help:    "Chat completion API request latency in seconds.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
	)
	digestTablesProcessed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "schemapilot_digest_tables_processed",
			Help: "Number of tables processed by the last digest run.",
		},
	)
	digestRunSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "schemapilot_digest_run_seconds",
			Help:    "Wall-clock duration of digest runs in seconds.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)
	queriesExecutedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schemapilot_queries_executed_total",
			Help: "Total number of generated queries executed against the target database by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		embeddingRequestsTotal,
		embeddingLatencySeconds,
		completionRequestsTotal,
		completionLatencySeconds,
		digestTablesProcessed,
		digestRunSeconds,
		queriesExecutedTotal,
	)
}

func ObserveEmbedding(elapsed time.Duration, err error) {
	embeddingRequestsTotal.WithLabelValues(outcome(err)).Inc()
	embeddingLatencySeconds.Observe(elapsed.Seconds())
}

func ObserveCompletion(elapsed time.Duration, err error) {
	completionRequestsTotal.WithLabelValues(outcome(err)).Inc()
	completionLatencySeconds.Observe(elapsed.Seconds())
}

func ObserveDigestRun(tables int, elapsed time.Duration) {
	digestTablesProcessed.Set(float64(tables))
	digestRunSeconds.Observe(elapsed.Seconds())
}

func ObserveQueryExecution(err error) {
	queriesExecutedTotal.WithLabelValues(outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
