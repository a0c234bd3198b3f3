package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Question answering and ingestion metrics.
var (
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "qa_queries_total",
			Help:      "Questions answered, by search mode and outcome",
		},
		[]string{"mode", "outcome"}, // mode: single_year/all_years; outcome: answered/not_found/error
	)

	RetrievedChunks = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "qa_retrieved_chunks",
			Help:      "Chunks retrieved per year searched",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 20},
		},
	)

	IngestRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_runs_total",
			Help:      "Data initialization runs by outcome",
		},
		[]string{"outcome"},
	)

	IngestedChunksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingested_chunks_total",
			Help:      "Chunks written to the index",
		},
	)
)

var registerServiceOnce sync.Once

// RegisterServiceMetrics registers the QA and ingestion collectors. Safe to call more than once.
func RegisterServiceMetrics() {
	registerServiceOnce.Do(func() {
		prometheus.MustRegister(QueriesTotal, RetrievedChunks, IngestRunsTotal, IngestedChunksTotal)
	})
}
