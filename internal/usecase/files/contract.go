package files

import (
	"context"
	"io"

	"github.com/kailas-cloud/reportqa/internal/domain/report"
	"github.com/kailas-cloud/reportqa/internal/filestore"
)

// Store persists report files on disk.
type Store interface {
	Store(name string, r io.Reader, overwrite bool) (report.File, error)
	List() ([]report.File, error)
	Delete(name string) (int64, error)
	Cleanup(referenced map[string]bool) (filestore.CleanupResult, error)
	Info() (filestore.DirInfo, error)
}

// ProcessedLister lists processed years, whose source files are kept by cleanup.
type ProcessedLister interface {
	List(ctx context.Context) ([]report.ProcessedYear, error)
}
