// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "reportqa"

// Provider operations.
const (
	OpEmbedding  = "embedding"
	OpCompletion = "completion"
)

// LLM provider metrics, labelled by operation so embeddings and completions share one family.
var (
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Total number of LLM provider requests",
		},
		[]string{"provider", "model", "operation", "status"},
	)

	ProviderRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "LLM provider request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider", "model", "operation"},
	)

	ProviderTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_tokens_total",
			Help:      "Total tokens consumed at LLM providers",
		},
		[]string{"provider", "model", "operation", "type"},
	)

	ProviderErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Total LLM provider errors",
		},
		[]string{"provider", "model", "operation", "error_type"},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_total",
			Help:      "Embedding cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	BudgetTokensRemaining = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "budget_tokens_remaining",
			Help:      "Provider tokens left in the budget window, -1 when unlimited",
		},
		[]string{"scope", "period"},
	)
)

var registerProviderOnce sync.Once

// RegisterProviderMetrics registers the provider collectors with the default registry.
// Safe to call more than once.
func RegisterProviderMetrics() {
	registerProviderOnce.Do(func() {
		prometheus.MustRegister(
			ProviderRequestsTotal,
			ProviderRequestDuration,
			ProviderTokensTotal,
			ProviderErrorsTotal,
			EmbeddingCacheTotal,
			BudgetTokensRemaining,
		)
	})
}

// ProviderCall labels one request to an LLM provider.
type ProviderCall struct {
	Provider  string
	Model     string
	Operation string
}

// Success records a completed request and its token usage.
func (c ProviderCall) Success(start time.Time, promptTokens, completionTokens int) {
	ProviderRequestsTotal.WithLabelValues(c.Provider, c.Model, c.Operation, "success").Inc()
	ProviderRequestDuration.WithLabelValues(c.Provider, c.Model, c.Operation).Observe(time.Since(start).Seconds())
	if promptTokens > 0 {
		ProviderTokensTotal.WithLabelValues(c.Provider, c.Model, c.Operation, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		ProviderTokensTotal.WithLabelValues(c.Provider, c.Model, c.Operation, "completion").Add(float64(completionTokens))
	}
}

// Failure records a failed request.
func (c ProviderCall) Failure(errorType string) {
	ProviderRequestsTotal.WithLabelValues(c.Provider, c.Model, c.Operation, "error").Inc()
	ProviderErrorsTotal.WithLabelValues(c.Provider, c.Model, c.Operation, errorType).Inc()
}
