// Package qa answers questions about annual reports from retrieved report passages.
package qa

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/reportqa/internal/domain"
	"github.com/kailas-cloud/reportqa/internal/domain/answer"
	"github.com/kailas-cloud/reportqa/internal/domain/chunk"
	"github.com/kailas-cloud/reportqa/internal/domain/query"
	"github.com/kailas-cloud/reportqa/internal/domain/report"
	"github.com/kailas-cloud/reportqa/internal/logger"
	"github.com/kailas-cloud/reportqa/internal/metrics"
)

// Search modes, also used as metric labels.
const (
	ModeSingleYear = "single_year"
	ModeAllYears   = "all_years"
)

// Query outcomes recorded in metrics.
const (
	outcomeAnswered = "answered"
	outcomeNotFound = "not_found"
	outcomeError    = "error"
)

// DefaultTopK is the number of chunks retrieved per year.
const DefaultTopK = 5

// Options tune retrieval and generation.
type Options struct {
	TopK        int
	MaxTokens   int
	Temperature float32
}

// Service answers questions for one or all processed years.
type Service struct {
	embed   domain.Embedder
	llm     domain.Completer
	chunks  ChunkSearcher
	catalog YearCatalog
	opts    Options
	logger  *zap.Logger
}

// New creates a QA service.
func New(
	embed domain.Embedder, llm domain.Completer,
	chunks ChunkSearcher, catalog YearCatalog,
	opts Options, logger *zap.Logger,
) *Service {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		embed:   embed,
		llm:     llm,
		chunks:  chunks,
		catalog: catalog,
		opts:    opts,
		logger:  logger,
	}
}

// Query answers q for its year. The year must be processed.
func (s *Service) Query(ctx context.Context, q query.Query) (answer.Result, error) {
	if !report.ValidYear(q.Year()) {
		return answer.Result{}, domain.NewValidationError(
			"year must be between %d and %d", report.MinYear, report.MaxYear)
	}

	if _, err := s.catalog.Get(ctx, q.Year()); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return answer.Result{}, domain.NewValidationError("no processed report for year %d", q.Year())
		}
		return answer.Result{}, fmt.Errorf("get processed year: %w", err)
	}

	res, err := s.answerYear(ctx, q.Text(), q.Year())
	if err != nil {
		metrics.QueriesTotal.WithLabelValues(ModeSingleYear, outcomeError).Inc()
		return answer.Result{}, err
	}
	metrics.QueriesTotal.WithLabelValues(ModeSingleYear, outcomeOf(res)).Inc()
	return res, nil
}

// QueryAllYears answers q once per processed year. Any failing year fails the call.
func (s *Service) QueryAllYears(ctx context.Context, q query.Query) (map[int]answer.Result, error) {
	processed, err := s.catalog.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list processed years: %w", err)
	}

	years := make([]int, 0, len(processed))
	for _, py := range processed {
		years = append(years, py.Year)
	}
	slices.Sort(years)
	years = slices.Compact(years)

	results := make(map[int]answer.Result, len(years))
	for _, year := range years {
		res, err := s.answerYear(ctx, q.Text(), year)
		if err != nil {
			metrics.QueriesTotal.WithLabelValues(ModeAllYears, outcomeError).Inc()
			logger.FromContext(ctx, s.logger).Warn("all-years query failed",
				zap.Int("year", year), zap.Error(err))
			if errors.Is(err, domain.ErrExternalService) {
				return nil, fmt.Errorf("year %d: %w", year, err)
			}
			return nil, fmt.Errorf("year %d: %w: %w", year, domain.ErrExternalService, err)
		}
		results[year] = res
	}

	outcome := outcomeNotFound
	for _, res := range results {
		if res.Answer != answer.NotFoundAnswer {
			outcome = outcomeAnswered
			break
		}
	}
	metrics.QueriesTotal.WithLabelValues(ModeAllYears, outcome).Inc()

	return results, nil
}

// ExampleQueries returns sample questions for the frontend.
func (s *Service) ExampleQueries() []string {
	return slices.Clone(exampleQueries)
}

func (s *Service) answerYear(ctx context.Context, text string, year int) (answer.Result, error) {
	start := time.Now()
	log := logger.FromContext(ctx, s.logger)

	emb, err := s.embed.Embed(ctx, text)
	if err != nil {
		return answer.Result{}, fmt.Errorf("embed query: %w", err)
	}

	hits, err := s.chunks.Search(ctx, year, emb.Embedding, s.opts.TopK)
	if err != nil {
		return answer.Result{}, fmt.Errorf("search chunks: %w: %w", domain.ErrExternalService, err)
	}
	metrics.RetrievedChunks.Observe(float64(len(hits)))

	res := answer.Result{Year: year, Query: text, Answer: answer.NotFoundAnswer}
	if len(hits) == 0 {
		log.Info("no chunks retrieved", zap.Int("year", year))
		res.ProcessingTime = time.Since(start)
		return res, nil
	}

	completion, err := s.llm.Complete(ctx, domain.CompletionRequest{
		System:      systemPrompt,
		Prompt:      buildPrompt(text, hits),
		MaxTokens:   s.opts.MaxTokens,
		Temperature: s.opts.Temperature,
	})
	if err != nil {
		return answer.Result{}, fmt.Errorf("complete: %w", err)
	}
	if completion.Text != "" {
		res.Answer = completion.Text
	}

	res.Confidence = answer.Confidence(similarities(hits))
	res.Citations = citations(year, hits)
	res.ProcessingTime = time.Since(start)

	log.Debug("question answered",
		zap.Int("year", year),
		zap.Int("chunks", len(hits)),
		zap.Float64("confidence", res.Confidence),
		zap.Int("prompt_tokens", completion.PromptTokens),
		zap.Int("completion_tokens", completion.CompletionTokens),
	)
	return res, nil
}

func similarities(hits []chunk.Hit) []float64 {
	out := make([]float64, len(hits))
	for i, h := range hits {
		out[i] = answer.Clamp(h.Similarity)
	}
	return out
}

func citations(year int, hits []chunk.Hit) []answer.Citation {
	out := make([]answer.Citation, len(hits))
	for i, h := range hits {
		out[i] = answer.Citation{
			Text:   h.Content,
			Page:   h.Page,
			Source: report.SourceLabel(year),
		}
	}
	return out
}

func outcomeOf(res answer.Result) string {
	if res.Answer == answer.NotFoundAnswer {
		return outcomeNotFound
	}
	return outcomeAnswered
}
