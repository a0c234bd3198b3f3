// Package files manages uploaded report files.
package files

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/kailas-cloud/reportqa/internal/domain/report"
	"github.com/kailas-cloud/reportqa/internal/filestore"
	"github.com/kailas-cloud/reportqa/internal/logger"
)

// Listing is the stored files with aggregate totals.
type Listing struct {
	Files      []report.File
	TotalCount int
	TotalSize  int64
}

// Service handles upload, listing, deletion and cleanup of report files.
type Service struct {
	store   Store
	catalog ProcessedLister
	logger  *zap.Logger
}

// New creates a files service.
func New(store Store, catalog ProcessedLister, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, catalog: catalog, logger: logger}
}

// Upload stores r under name. Existing files are replaced only when overwrite is set.
func (s *Service) Upload(ctx context.Context, name string, r io.Reader, overwrite bool) (report.File, error) {
	f, err := s.store.Store(name, r, overwrite)
	if err != nil {
		return report.File{}, fmt.Errorf("store %q: %w", name, err)
	}
	logger.FromContext(ctx, s.logger).Info("file uploaded",
		zap.String("filename", f.Name),
		zap.Int64("size", f.Size),
		zap.Int("year", f.Year),
		zap.Bool("overwrite", overwrite),
	)
	return f, nil
}

// List returns stored files, newest first.
func (s *Service) List() (Listing, error) {
	fs, err := s.store.List()
	if err != nil {
		return Listing{}, fmt.Errorf("list files: %w", err)
	}
	l := Listing{Files: fs, TotalCount: len(fs)}
	for _, f := range fs {
		l.TotalSize += f.Size
	}
	return l, nil
}

// Delete removes a stored file and returns its size.
func (s *Service) Delete(ctx context.Context, name string) (int64, error) {
	size, err := s.store.Delete(name)
	if err != nil {
		return 0, fmt.Errorf("delete %q: %w", name, err)
	}
	logger.FromContext(ctx, s.logger).Info("file deleted",
		zap.String("filename", name), zap.Int64("size", size))
	return size, nil
}

// Cleanup removes invalid files and files no processed year was built from.
func (s *Service) Cleanup(ctx context.Context) (filestore.CleanupResult, error) {
	processed, err := s.catalog.List(ctx)
	if err != nil {
		return filestore.CleanupResult{}, fmt.Errorf("list processed years: %w", err)
	}
	referenced := make(map[string]bool, len(processed))
	for _, py := range processed {
		referenced[py.Source] = true
	}

	res, err := s.store.Cleanup(referenced)
	if err != nil {
		return filestore.CleanupResult{}, fmt.Errorf("cleanup: %w", err)
	}
	logger.FromContext(ctx, s.logger).Info("files cleaned up",
		zap.Strings("files", res.Files),
		zap.Int64("size", res.Size),
	)
	return res, nil
}

// Info describes the upload directory.
func (s *Service) Info() (filestore.DirInfo, error) {
	info, err := s.store.Info()
	if err != nil {
		return filestore.DirInfo{}, fmt.Errorf("directory info: %w", err)
	}
	return info, nil
}
