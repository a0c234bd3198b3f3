package health

import (
	"context"

	"github.com/kailas-cloud/reportqa/internal/filestore"
)

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// CompletionChecker checks completion provider availability.
type CompletionChecker interface {
	HealthCheck(ctx context.Context) error
}

// StorageInspector describes the upload directory.
type StorageInspector interface {
	Info() (filestore.DirInfo, error)
}
