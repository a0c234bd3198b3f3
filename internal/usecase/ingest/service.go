// Package ingest turns stored report files into indexed, queryable years.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/reportqa/internal/domain"
	"github.com/kailas-cloud/reportqa/internal/domain/chunk"
	"github.com/kailas-cloud/reportqa/internal/domain/report"
	"github.com/kailas-cloud/reportqa/internal/logger"
	"github.com/kailas-cloud/reportqa/internal/metrics"
	"github.com/kailas-cloud/reportqa/internal/pdftext"
)

// Summary describes one ingestion run.
type Summary struct {
	RunID     string
	Processed []int
	Skipped   []int
	Pruned    []int
	Chunks    int
}

// ExtractFunc reads page texts from a stored file.
type ExtractFunc func(ctx context.Context, path string) ([]pdftext.Page, error)

// Service runs ingestion. Runs are serialized; a concurrent call fails fast.
type Service struct {
	files    FileLister
	chunks   ChunkWriter
	catalog  YearCatalog
	embed    domain.Embedder
	splitter TextSplitter
	extract  ExtractFunc
	types    []string
	logger   *zap.Logger
	now      func() time.Time

	mu sync.Mutex
}

// New creates an ingestion service. types lists ingestible extensions (".pdf", ".txt").
func New(
	files FileLister, chunks ChunkWriter, catalog YearCatalog,
	embed domain.Embedder, splitter TextSplitter, types []string, logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		files:    files,
		chunks:   chunks,
		catalog:  catalog,
		embed:    embed,
		splitter: splitter,
		extract:  pdftext.Extract,
		types:    types,
		logger:   logger,
		now:      time.Now,
	}
}

// Initialize indexes every year present in the file store. Years whose source file and
// content hash match the catalog are skipped unless force is set. Catalog entries whose
// year has no file any more are pruned.
func (s *Service) Initialize(ctx context.Context, force bool) (Summary, error) {
	if !s.mu.TryLock() {
		return Summary{}, domain.ErrIngestInProgress
	}
	defer s.mu.Unlock()

	sum := Summary{RunID: uuid.NewString()}
	log := logger.FromContext(ctx, s.logger).With(zap.String("run_id", sum.RunID))
	log.Info("data initialization started", zap.Bool("force", force))

	if err := s.run(ctx, log, force, &sum); err != nil {
		metrics.IngestRunsTotal.WithLabelValues("error").Inc()
		log.Error("data initialization failed", zap.Error(err))
		return sum, err
	}

	metrics.IngestRunsTotal.WithLabelValues("success").Inc()
	log.Info("data initialization complete",
		zap.Ints("processed", sum.Processed),
		zap.Ints("skipped", sum.Skipped),
		zap.Ints("pruned", sum.Pruned),
		zap.Int("chunks", sum.Chunks),
	)
	return sum, nil
}

func (s *Service) run(ctx context.Context, log *zap.Logger, force bool, sum *Summary) error {
	files, err := s.files.List()
	if err != nil {
		return fmt.Errorf("list files: %w", err)
	}
	byYear := report.FilesByYear(s.ingestible(files))

	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	slices.Sort(years)

	for _, year := range years {
		if err := ctx.Err(); err != nil {
			return err
		}
		f := byYear[year]

		if !force && s.upToDate(ctx, f) {
			log.Info("year up to date", zap.Int("year", year), zap.String("source", f.Name))
			sum.Skipped = append(sum.Skipped, year)
			continue
		}

		n, err := s.processYear(ctx, sum.RunID, f)
		if err != nil {
			return fmt.Errorf("process year %d (%s): %w", year, f.Name, err)
		}
		log.Info("year processed", zap.Int("year", year), zap.String("source", f.Name), zap.Int("chunks", n))
		sum.Processed = append(sum.Processed, year)
		sum.Chunks += n
	}

	return s.prune(ctx, log, byYear, sum)
}

func (s *Service) upToDate(ctx context.Context, f report.File) bool {
	py, err := s.catalog.Get(ctx, f.Year)
	if err != nil {
		return false
	}
	return py.Source == f.Name && py.ContentHash == f.Hash
}

func (s *Service) processYear(ctx context.Context, runID string, f report.File) (int, error) {
	pages, err := s.extract(ctx, f.Path)
	if err != nil {
		return 0, fmt.Errorf("extract: %w", err)
	}

	chunks := s.split(f, pages)

	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i := range chunks {
			texts[i] = chunks[i].Content
		}
		emb, err := domain.EmbedAll(ctx, s.embed, texts)
		if err != nil {
			return 0, fmt.Errorf("embed chunks: %w", err)
		}
		if len(emb.Embeddings) != len(chunks) {
			return 0, fmt.Errorf("embed chunks: %w: got %d vectors for %d chunks",
				domain.ErrExternalService, len(emb.Embeddings), len(chunks))
		}
		for i := range chunks {
			chunks[i].Vector = emb.Embeddings[i]
		}
	}

	// the year must read as unprocessed until the rewrite is recorded again
	if err := s.catalog.Delete(ctx, f.Year); err != nil {
		return 0, fmt.Errorf("invalidate catalog: %w", err)
	}
	if err := s.chunks.ReplaceYear(ctx, f.Year, chunks); err != nil {
		return 0, fmt.Errorf("index chunks: %w", err)
	}
	metrics.IngestedChunksTotal.Add(float64(len(chunks)))

	err = s.catalog.Put(ctx, report.ProcessedYear{
		Year:        f.Year,
		Source:      f.Name,
		ContentHash: f.Hash,
		Pages:       len(pages),
		Chunks:      len(chunks),
		RunID:       runID,
		ProcessedAt: s.now().UTC(),
	})
	if err != nil {
		return 0, fmt.Errorf("record year: %w", err)
	}
	return len(chunks), nil
}

func (s *Service) split(f report.File, pages []pdftext.Page) []chunk.Chunk {
	var out []chunk.Chunk
	for _, p := range pages {
		for _, text := range s.splitter.Split(p.Text) {
			out = append(out, chunk.Chunk{
				Year:    f.Year,
				Source:  f.Name,
				Page:    p.Number,
				Ordinal: len(out),
				Content: text,
			})
		}
	}
	return out
}

func (s *Service) prune(ctx context.Context, log *zap.Logger, byYear map[int]report.File, sum *Summary) error {
	processed, err := s.catalog.List(ctx)
	if err != nil {
		return fmt.Errorf("list processed years: %w", err)
	}
	for _, py := range processed {
		if _, ok := byYear[py.Year]; ok {
			continue
		}
		if _, err := s.chunks.DeleteYear(ctx, py.Year); err != nil {
			return fmt.Errorf("prune year %d: %w", py.Year, err)
		}
		if err := s.catalog.Delete(ctx, py.Year); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("prune year %d: %w", py.Year, err)
		}
		log.Info("year pruned", zap.Int("year", py.Year), zap.String("source", py.Source))
		sum.Pruned = append(sum.Pruned, py.Year)
	}
	return nil
}

func (s *Service) ingestible(files []report.File) []report.File {
	out := files[:0:0]
	for _, f := range files {
		if slices.Contains(s.types, report.Ext(f.Name)) {
			out = append(out, f)
		}
	}
	return out
}
