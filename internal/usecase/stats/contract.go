package stats

import (
	"context"

	"github.com/kailas-cloud/reportqa/internal/domain/report"
)

// FileLister lists stored report files.
type FileLister interface {
	List() ([]report.File, error)
}

// ProcessedLister lists processed years.
type ProcessedLister interface {
	List(ctx context.Context) ([]report.ProcessedYear, error)
}
