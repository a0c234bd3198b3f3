package ingest

import (
	"context"

	"github.com/kailas-cloud/reportqa/internal/domain/chunk"
	"github.com/kailas-cloud/reportqa/internal/domain/report"
)

// FileLister lists stored report files.
type FileLister interface {
	List() ([]report.File, error)
}

// ChunkWriter replaces the indexed chunks of a year.
type ChunkWriter interface {
	ReplaceYear(ctx context.Context, year int, chunks []chunk.Chunk) error
	DeleteYear(ctx context.Context, year int) (int, error)
}

// YearCatalog records processed years.
type YearCatalog interface {
	Get(ctx context.Context, year int) (report.ProcessedYear, error)
	Put(ctx context.Context, py report.ProcessedYear) error
	List(ctx context.Context) ([]report.ProcessedYear, error)
	Delete(ctx context.Context, year int) error
}

// TextSplitter cuts page text into chunk-sized passages.
type TextSplitter interface {
	Split(text string) []string
}
