package budget

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/reportqa/internal/domain"
)

// DefaultMaxAPIBatchSize is the largest number of texts sent in one embeddings request.
const DefaultMaxAPIBatchSize = 256

// Checker is the budget contract of the decorators.
type Checker interface {
	Check(ctx context.Context) error
	Record(tokens int64)
}

// Embedder wraps an embedder with budget enforcement and request batching.
// Transport metrics are recorded by the provider clients.
type Embedder struct {
	inner     domain.Embedder
	budget    Checker
	batchSize int
	logger    *zap.Logger
}

// NewEmbedder wraps inner. budget may be nil.
func NewEmbedder(inner domain.Embedder, budget Checker, logger *zap.Logger) *Embedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Embedder{
		inner:     inner,
		budget:    budget,
		batchSize: DefaultMaxAPIBatchSize,
		logger:    logger,
	}
}

// Embed checks the budget, delegates and records usage.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := e.check(ctx); err != nil {
		return domain.EmbeddingResult{}, err
	}

	start := time.Now()
	result, err := e.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	e.record(result.TotalTokens)

	e.logger.Debug("Embedding request completed",
		zap.Duration("duration", time.Since(start)),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("total_tokens", result.TotalTokens),
	)
	return result, nil
}

// BatchEmbed splits texts into provider-sized requests, re-checking the budget
// before each one.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	start := time.Now()
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, 0, len(texts))}

	for offset := 0; offset < len(texts); offset += e.batchSize {
		if err := e.check(ctx); err != nil {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("batch at %d: %w", offset, err)
		}

		end := min(offset+e.batchSize, len(texts))
		res, err := domain.EmbedAll(ctx, e.inner, texts[offset:end])
		if err != nil {
			e.logger.Error("Batch embedding request failed",
				zap.Int("chunk_offset", offset),
				zap.Int("chunk_size", end-offset),
				zap.Error(err),
			)
			return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
		}
		e.record(res.TotalTokens)

		out.Embeddings = append(out.Embeddings, res.Embeddings...)
		out.PromptTokens += res.PromptTokens
		out.TotalTokens += res.TotalTokens
	}

	e.logger.Debug("Batch embedding completed",
		zap.Duration("duration", time.Since(start)),
		zap.Int("batch_size", len(texts)),
		zap.Int("total_tokens", out.TotalTokens),
	)
	return out, nil
}

// HealthCheck delegates to the inner embedder when it supports health checks.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if hc, ok := e.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

func (e *Embedder) check(ctx context.Context) error {
	if e.budget == nil {
		return nil
	}
	if err := e.budget.Check(ctx); err != nil {
		e.logger.Error("Budget exceeded", zap.String("operation", "embedding"), zap.Error(err))
		return fmt.Errorf("budget check: %w", err)
	}
	return nil
}

func (e *Embedder) record(tokens int) {
	if e.budget != nil {
		e.budget.Record(int64(tokens))
	}
}

// Completer wraps a completer with budget enforcement.
type Completer struct {
	inner  domain.Completer
	budget Checker
	logger *zap.Logger
}

// NewCompleter wraps inner. budget may be nil.
func NewCompleter(inner domain.Completer, budget Checker, logger *zap.Logger) *Completer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Completer{inner: inner, budget: budget, logger: logger}
}

// Complete checks the budget, delegates and records prompt plus completion tokens.
func (c *Completer) Complete(ctx context.Context, req domain.CompletionRequest) (domain.CompletionResult, error) {
	if c.budget != nil {
		if err := c.budget.Check(ctx); err != nil {
			c.logger.Error("Budget exceeded", zap.String("operation", "completion"), zap.Error(err))
			return domain.CompletionResult{}, fmt.Errorf("budget check: %w", err)
		}
	}

	res, err := c.inner.Complete(ctx, req)
	if err != nil {
		return domain.CompletionResult{}, err
	}

	if c.budget != nil {
		c.budget.Record(int64(res.PromptTokens + res.CompletionTokens))
	}
	return res, nil
}
