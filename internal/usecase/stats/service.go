// Package stats derives dataset statistics from the file store and the report catalog.
package stats

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/kailas-cloud/reportqa/internal/domain/report"
)

// StatusHealthy is reported when statistics could be computed.
const StatusHealthy = "healthy"

// Stats summarizes available and processed reports.
type Stats struct {
	AvailableYears []int
	ProcessedYears []int
	TotalDocuments int
	TotalChunks    int
	LastUpdated    time.Time
	Status         string
}

// Service computes statistics at request time.
type Service struct {
	files   FileLister
	catalog ProcessedLister
	types   []string
	now     func() time.Time
}

// New creates a stats service. types lists the extensions that count as reports.
func New(files FileLister, catalog ProcessedLister, types []string) *Service {
	return &Service{files: files, catalog: catalog, types: types, now: time.Now}
}

// Years returns the distinct years of stored reports, ascending.
func (s *Service) Years() ([]int, error) {
	fs, err := s.files.List()
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return report.Years(s.reports(fs)), nil
}

// Stats combines available years with the catalog. LastUpdated is the most recent
// processing time, or now when nothing is processed.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	available, err := s.Years()
	if err != nil {
		return Stats{}, err
	}

	processed, err := s.catalog.List(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("list processed years: %w", err)
	}

	st := Stats{
		AvailableYears: available,
		ProcessedYears: make([]int, 0, len(processed)),
		TotalDocuments: len(processed),
		Status:         StatusHealthy,
	}
	for _, py := range processed {
		st.ProcessedYears = append(st.ProcessedYears, py.Year)
		st.TotalChunks += py.Chunks
		if py.ProcessedAt.After(st.LastUpdated) {
			st.LastUpdated = py.ProcessedAt
		}
	}
	slices.Sort(st.ProcessedYears)
	if st.LastUpdated.IsZero() {
		st.LastUpdated = s.now().UTC()
	}
	return st, nil
}

func (s *Service) reports(fs []report.File) []report.File {
	out := make([]report.File, 0, len(fs))
	for _, f := range fs {
		if slices.Contains(s.types, report.Ext(f.Name)) {
			out = append(out, f)
		}
	}
	return out
}
