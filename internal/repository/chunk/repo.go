// Package chunk stores report chunks as HASH documents under a vector index.
package chunk

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/reportqa/internal/db"
	domchunk "github.com/kailas-cloud/reportqa/internal/domain/chunk"
)

const writeBatch = 256

// store is the consumer interface for chunks (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	Del(ctx context.Context, keys ...string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// HNSWConfig holds HNSW graph parameters for the vector field.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo implements the chunk index used by ingestion and question answering.
type Repo struct {
	store     store
	prefix    string
	vectorDim int
	hnsw      HNSWConfig
}

// New creates a chunk repository. keyPrefix namespaces every key, e.g. "reportqa:".
func New(s store, keyPrefix string, vectorDim int, hnsw HNSWConfig) *Repo {
	return &Repo{store: s, prefix: keyPrefix, vectorDim: vectorDim, hnsw: hnsw}
}

// EnsureIndex creates the vector index when it does not exist yet. When the
// index was built for other vector dimensions it is dropped together with
// every chunk and created again; rebuilt reports that case so callers can
// invalidate what they derived from the old chunks.
func (r *Repo) EnsureIndex(ctx context.Context) (rebuilt bool, err error) {
	name := r.indexName()
	exists, err := r.store.IndexExists(ctx, name)
	if err != nil {
		return false, fmt.Errorf("check index %s: %w", name, err)
	}
	dim, err := r.indexedDim(ctx)
	if err != nil {
		return false, err
	}

	if dim != 0 && dim != r.vectorDim {
		if exists {
			if err := r.store.DropIndex(ctx, name); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
				return false, fmt.Errorf("drop index %s: %w", name, err)
			}
		}
		if err := r.deleteMatching(ctx, r.chunkPrefix()+"*"); err != nil {
			return false, fmt.Errorf("purge chunks: %w", err)
		}
		exists, rebuilt = false, true
	}

	if !exists {
		def, err := buildIndex(name, r.chunkPrefix(), r.vectorDim, r.hnsw)
		if err != nil {
			return false, err
		}
		if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
			return false, fmt.Errorf("create index %s: %w", name, err)
		}
	}
	if dim != r.vectorDim {
		if err := r.store.Set(ctx, r.dimKey(), []byte(strconv.Itoa(r.vectorDim))); err != nil {
			return false, fmt.Errorf("record index dimensions: %w", err)
		}
	}
	return rebuilt, nil
}

// indexedDim returns the dimensions the index was created with, 0 if unknown.
func (r *Repo) indexedDim(ctx context.Context) (int, error) {
	raw, err := r.store.Get(ctx, r.dimKey())
	if errors.Is(err, db.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read index dimensions: %w", err)
	}
	dim, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, nil //nolint:nilerr // garbage is treated as unknown and overwritten
	}
	return dim, nil
}

// ReplaceYear writes the given chunks as the complete set for year. Every
// chunk is validated before storage is touched, so a rejected set leaves the
// previous chunks searchable. Chunks of the old set that the new one does
// not overwrite are removed after the write.
func (r *Repo) ReplaceYear(ctx context.Context, year int, chunks []domchunk.Chunk) error {
	items := make([]db.HashSetItem, 0, len(chunks))
	fresh := make(map[string]struct{}, len(chunks))
	for i := range chunks {
		c := &chunks[i]
		if c.Year != year {
			return fmt.Errorf("chunk %s belongs to year %d, not %d", c.ID(), c.Year, year)
		}
		if len(c.Vector) != r.vectorDim {
			return fmt.Errorf("chunk %s: vector has %d dimensions, index expects %d",
				c.ID(), len(c.Vector), r.vectorDim)
		}
		key := r.chunkKey(c)
		items = append(items, db.HashSetItem{Key: key, Fields: buildHashFields(c)})
		fresh[key] = struct{}{}
	}

	old, err := r.store.Scan(ctx, r.yearPattern(year))
	if err != nil {
		return fmt.Errorf("scan chunks for %d: %w", year, err)
	}

	for start := 0; start < len(items); start += writeBatch {
		end := min(start+writeBatch, len(items))
		if err := r.store.HSetMulti(ctx, items[start:end]); err != nil {
			return fmt.Errorf("write chunks for %d: %w", year, err)
		}
	}

	stale := old[:0]
	for _, k := range old {
		if _, ok := fresh[k]; !ok {
			stale = append(stale, k)
		}
	}
	if err := r.deleteKeys(ctx, stale); err != nil {
		return fmt.Errorf("delete stale chunks for %d: %w", year, err)
	}
	return nil
}

// DeleteYear removes every chunk of a year and returns how many were removed.
func (r *Repo) DeleteYear(ctx context.Context, year int) (int, error) {
	pattern := r.yearPattern(year)
	keys, err := r.store.Scan(ctx, pattern)
	if err != nil {
		return 0, fmt.Errorf("scan %s: %w", pattern, err)
	}
	if err := r.deleteKeys(ctx, keys); err != nil {
		return 0, fmt.Errorf("delete chunks for %d: %w", year, err)
	}
	return len(keys), nil
}

func (r *Repo) deleteMatching(ctx context.Context, pattern string) error {
	keys, err := r.store.Scan(ctx, pattern)
	if err != nil {
		return fmt.Errorf("scan %s: %w", pattern, err)
	}
	return r.deleteKeys(ctx, keys)
}

func (r *Repo) deleteKeys(ctx context.Context, keys []string) error {
	for start := 0; start < len(keys); start += writeBatch {
		end := min(start+writeBatch, len(keys))
		if err := r.store.Del(ctx, keys[start:end]...); err != nil {
			return err
		}
	}
	return nil
}

// Search returns the k chunks of a year closest to vector, nearest first.
func (r *Repo) Search(ctx context.Context, year int, vector []float32, k int) ([]domchunk.Hit, error) {
	res, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.indexName(),
		VectorField:  fieldVector,
		Filters:      []db.TagFilter{{Field: fieldYear, Value: strconv.Itoa(year)}},
		Vector:       vector,
		K:            k,
		ReturnFields: []string{fieldContent, fieldPage, fieldSource},
	})
	if err != nil {
		return nil, fmt.Errorf("search chunks for %d: %w", year, err)
	}

	hits := make([]domchunk.Hit, 0, len(res.Entries))
	for _, e := range res.Entries {
		hits = append(hits, parseHit(e))
	}
	return hits, nil
}

func (r *Repo) indexName() string { return r.prefix + "idx:chunks" }

func (r *Repo) chunkPrefix() string { return r.prefix + "chunk:" }

func (r *Repo) dimKey() string { return r.indexName() + ":dim" }

func (r *Repo) yearPattern(year int) string { return r.chunkPrefix() + strconv.Itoa(year) + ":*" }

func (r *Repo) chunkKey(c *domchunk.Chunk) string { return r.chunkPrefix() + c.ID() }
