package qa

import (
	"context"

	"github.com/kailas-cloud/reportqa/internal/domain/chunk"
	"github.com/kailas-cloud/reportqa/internal/domain/report"
)

// ChunkSearcher runs year-scoped similarity search over indexed chunks.
type ChunkSearcher interface {
	Search(ctx context.Context, year int, vector []float32, k int) ([]chunk.Hit, error)
}

// YearCatalog reads processed-year records.
type YearCatalog interface {
	Get(ctx context.Context, year int) (report.ProcessedYear, error)
	List(ctx context.Context) ([]report.ProcessedYear, error)
}
