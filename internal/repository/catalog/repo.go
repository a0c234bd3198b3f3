// Package catalog records which report years are processed, one HASH per year.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/kailas-cloud/reportqa/internal/domain"
	"github.com/kailas-cloud/reportqa/internal/domain/report"
)

// store is the consumer interface for the catalog (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repo stores ProcessedYear records.
type Repo struct {
	store  store
	prefix string
}

// New creates a catalog repository under keyPrefix.
func New(s store, keyPrefix string) *Repo {
	return &Repo{store: s, prefix: keyPrefix + "year:"}
}

// Put records a processed year, replacing any previous record.
func (r *Repo) Put(ctx context.Context, py report.ProcessedYear) error {
	key := r.key(py.Year)
	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("reset %s: %w", key, err)
	}
	if err := r.store.HSet(ctx, key, toFields(py)); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	return nil
}

// Get returns the record of a year or domain.ErrNotFound.
func (r *Repo) Get(ctx context.Context, year int) (report.ProcessedYear, error) {
	key := r.key(year)
	ok, err := r.store.Exists(ctx, key)
	if err != nil {
		return report.ProcessedYear{}, fmt.Errorf("exists %s: %w", key, err)
	}
	if !ok {
		return report.ProcessedYear{}, fmt.Errorf("year %d: %w", year, domain.ErrNotFound)
	}
	m, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return report.ProcessedYear{}, fmt.Errorf("hgetall %s: %w", key, err)
	}
	// deleted between EXISTS and HGETALL
	if len(m) == 0 {
		return report.ProcessedYear{}, fmt.Errorf("year %d: %w", year, domain.ErrNotFound)
	}
	py, err := fromFields(m)
	if err != nil {
		return report.ProcessedYear{}, fmt.Errorf("decode %s: %w", key, err)
	}
	return py, nil
}

// List returns all processed years, ascending. Unreadable records are skipped.
func (r *Repo) List(ctx context.Context) ([]report.ProcessedYear, error) {
	keys, err := r.store.Scan(ctx, r.prefix+"*")
	if err != nil {
		return nil, fmt.Errorf("scan catalog: %w", err)
	}

	out := make([]report.ProcessedYear, 0, len(keys))
	for _, key := range keys {
		m, err := r.store.HGetAll(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("hgetall %s: %w", key, err)
		}
		if len(m) == 0 {
			continue
		}
		py, err := fromFields(m)
		if err != nil {
			continue
		}
		out = append(out, py)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out, nil
}

// Delete removes the record of a year. Missing records are not an error.
func (r *Repo) Delete(ctx context.Context, year int) error {
	key := r.key(year)
	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

// Clear removes every record and returns how many were removed.
func (r *Repo) Clear(ctx context.Context) (int, error) {
	keys, err := r.store.Scan(ctx, r.prefix+"*")
	if err != nil {
		return 0, fmt.Errorf("scan catalog: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := r.store.Del(ctx, keys...); err != nil {
		return 0, fmt.Errorf("clear catalog: %w", err)
	}
	return len(keys), nil
}

func (r *Repo) key(year int) string {
	return r.prefix + strconv.Itoa(year)
}

func toFields(py report.ProcessedYear) map[string]string {
	return map[string]string{
		"year":         strconv.Itoa(py.Year),
		"source":       py.Source,
		"content_hash": py.ContentHash,
		"pages":        strconv.Itoa(py.Pages),
		"chunks":       strconv.Itoa(py.Chunks),
		"run_id":       py.RunID,
		"processed_at": py.ProcessedAt.UTC().Format(time.RFC3339Nano),
	}
}

func fromFields(m map[string]string) (report.ProcessedYear, error) {
	year, err := strconv.Atoi(m["year"])
	if err != nil {
		return report.ProcessedYear{}, fmt.Errorf("year: %w", err)
	}
	pages, _ := strconv.Atoi(m["pages"])
	chunks, _ := strconv.Atoi(m["chunks"])
	processedAt, err := time.Parse(time.RFC3339Nano, m["processed_at"])
	if err != nil {
		return report.ProcessedYear{}, fmt.Errorf("processed_at: %w", err)
	}
	return report.ProcessedYear{
		Year:        year,
		Source:      m["source"],
		ContentHash: m["content_hash"],
		Pages:       pages,
		Chunks:      chunks,
		RunID:       m["run_id"],
		ProcessedAt: processedAt,
	}, nil
}
