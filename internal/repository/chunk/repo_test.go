package chunk

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/reportqa/internal/db"
	"github.com/kailas-cloud/reportqa/internal/db/memory"
	domchunk "github.com/kailas-cloud/reportqa/internal/domain/chunk"
)

// --- Mocks ---

type mockStore struct {
	*memory.Store
	indexExistsErr error
	createIndexErr error
	hsetMultiErr   error
	dropIndexErr   error
	created        int
}

func (m *mockStore) DropIndex(ctx context.Context, name string) error {
	if m.dropIndexErr != nil {
		return m.dropIndexErr
	}
	return m.Store.DropIndex(ctx, name)
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsErr != nil {
		return false, m.indexExistsErr
	}
	return m.Store.IndexExists(ctx, name)
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	m.created++
	if m.createIndexErr != nil {
		return m.createIndexErr
	}
	return m.Store.CreateIndex(ctx, def)
}

func (m *mockStore) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if m.hsetMultiErr != nil {
		return m.hsetMultiErr
	}
	return m.Store.HSetMulti(ctx, items)
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{Store: memory.NewStore()}
	repo := New(ms, "reportqa:", 2, HNSWConfig{M: 16, EFConstruct: 200})
	if _, err := repo.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("ensure index: %v", err)
	}
	return repo, ms
}

func testChunk(year, ordinal int, content string, vec ...float32) domchunk.Chunk {
	return domchunk.Chunk{
		Year:    year,
		Source:  "apple_2023.pdf",
		Page:    ordinal + 1,
		Ordinal: ordinal,
		Content: content,
		Vector:  vec,
	}
}

// --- EnsureIndex ---

func TestEnsureIndex_Idempotent(t *testing.T) {
	repo, ms := newTestRepo(t)
	rebuilt, err := repo.EnsureIndex(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rebuilt {
		t.Error("unchanged dimensions must not rebuild")
	}
	if ms.created != 1 {
		t.Errorf("expected one FT.CREATE, got %d", ms.created)
	}
}

func TestEnsureIndex_RaceIsTolerated(t *testing.T) {
	ms := &mockStore{Store: memory.NewStore(), createIndexErr: db.ErrIndexExists}
	repo := New(ms, "reportqa:", 2, HNSWConfig{})
	if _, err := repo.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEnsureIndex_Error(t *testing.T) {
	ms := &mockStore{Store: memory.NewStore(), indexExistsErr: errors.New("connection refused")}
	repo := New(ms, "reportqa:", 2, HNSWConfig{})
	if _, err := repo.EnsureIndex(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestEnsureIndex_DimensionChangeRebuilds(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()
	if err := repo.ReplaceYear(ctx, 2023, []domchunk.Chunk{testChunk(2023, 0, "a", 1, 0)}); err != nil {
		t.Fatalf("replace: %v", err)
	}

	wider := New(ms, "reportqa:", 3, HNSWConfig{})
	rebuilt, err := wider.EnsureIndex(ctx)
	if err != nil {
		t.Fatalf("ensure index: %v", err)
	}
	if !rebuilt {
		t.Fatal("expected rebuild after dimension change")
	}
	if ms.created != 2 {
		t.Errorf("expected index to be created again, got %d creates", ms.created)
	}
	keys, err := ms.Scan(ctx, "reportqa:chunk:*")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("expected old chunks to be purged, got %v", keys)
	}

	rebuilt, err = wider.EnsureIndex(ctx)
	if err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if rebuilt || ms.created != 2 {
		t.Errorf("second call must be a no-op: rebuilt=%v creates=%d", rebuilt, ms.created)
	}
}

func TestEnsureIndex_DropError(t *testing.T) {
	ms := &mockStore{Store: memory.NewStore(), dropIndexErr: errors.New("READONLY")}
	ctx := context.Background()
	if _, err := New(ms, "reportqa:", 2, HNSWConfig{}).EnsureIndex(ctx); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if _, err := New(ms, "reportqa:", 4, HNSWConfig{}).EnsureIndex(ctx); err == nil {
		t.Fatal("expected drop error")
	}
}

// --- ReplaceYear / Search ---

func TestReplaceYear_ThenSearch(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	err := repo.ReplaceYear(ctx, 2023, []domchunk.Chunk{
		testChunk(2023, 0, "net sales", 1, 0),
		testChunk(2023, 1, "employees", 0, 1),
	})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if err := repo.ReplaceYear(ctx, 2022, []domchunk.Chunk{testChunk(2022, 0, "old sales", 1, 0)}); err != nil {
		t.Fatalf("replace 2022: %v", err)
	}

	hits, err := repo.Search(ctx, 2023, []float32{1, 0.1}, 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits for 2023, got %d", len(hits))
	}
	if hits[0].Content != "net sales" || hits[0].Page != 1 || hits[0].Source != "apple_2023.pdf" {
		t.Errorf("unexpected top hit: %+v", hits[0])
	}
	if hits[0].Similarity < hits[1].Similarity {
		t.Errorf("hits not ordered by similarity: %+v", hits)
	}
}

func TestReplaceYear_DropsPreviousChunks(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	first := []domchunk.Chunk{
		testChunk(2023, 0, "a", 1, 0),
		testChunk(2023, 1, "b", 1, 0),
		testChunk(2023, 2, "c", 1, 0),
	}
	if err := repo.ReplaceYear(ctx, 2023, first); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if err := repo.ReplaceYear(ctx, 2023, []domchunk.Chunk{testChunk(2023, 0, "z", 1, 0)}); err != nil {
		t.Fatalf("replace again: %v", err)
	}

	hits, err := repo.Search(ctx, 2023, []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 || hits[0].Content != "z" {
		t.Fatalf("expected only the new chunk, got %+v", hits)
	}
}

func TestReplaceYear_RejectsWrongDimensions(t *testing.T) {
	repo, _ := newTestRepo(t)
	err := repo.ReplaceYear(context.Background(), 2023, []domchunk.Chunk{testChunk(2023, 0, "a", 1, 0, 0)})
	if err == nil {
		t.Fatal("expected dimension error")
	}
}

func TestReplaceYear_RejectedSetKeepsPreviousChunks(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	if err := repo.ReplaceYear(ctx, 2023, []domchunk.Chunk{
		testChunk(2023, 0, "net sales", 1, 0),
		testChunk(2023, 1, "employees", 0, 1),
	}); err != nil {
		t.Fatalf("replace: %v", err)
	}

	// the bad chunk sits after a valid one
	err := repo.ReplaceYear(ctx, 2023, []domchunk.Chunk{
		testChunk(2023, 0, "rewritten", 1, 0),
		testChunk(2023, 1, "too wide", 1, 0, 0),
	})
	if err == nil {
		t.Fatal("expected dimension error")
	}

	hits, err := repo.Search(ctx, 2023, []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 2 || hits[0].Content != "net sales" {
		t.Fatalf("expected previous chunks to survive, got %+v", hits)
	}
}

func TestReplaceYear_RejectsForeignYear(t *testing.T) {
	repo, _ := newTestRepo(t)
	err := repo.ReplaceYear(context.Background(), 2023, []domchunk.Chunk{testChunk(2022, 0, "a", 1, 0)})
	if err == nil {
		t.Fatal("expected year mismatch error")
	}
}

func TestReplaceYear_WriteError(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.hsetMultiErr = errors.New("OOM")

	err := repo.ReplaceYear(context.Background(), 2023, []domchunk.Chunk{testChunk(2023, 0, "a", 1, 0)})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestReplaceYear_WriteErrorKeepsPreviousChunks(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()
	if err := repo.ReplaceYear(ctx, 2023, []domchunk.Chunk{testChunk(2023, 0, "a", 1, 0)}); err != nil {
		t.Fatalf("replace: %v", err)
	}

	ms.hsetMultiErr = errors.New("OOM")
	if err := repo.ReplaceYear(ctx, 2023, []domchunk.Chunk{testChunk(2023, 5, "b", 1, 0)}); err == nil {
		t.Fatal("expected error")
	}
	ms.hsetMultiErr = nil

	hits, err := repo.Search(ctx, 2023, []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 || hits[0].Content != "a" {
		t.Fatalf("expected the old chunk to survive a failed write, got %+v", hits)
	}
}

func TestDeleteYear(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	if err := repo.ReplaceYear(ctx, 2023, []domchunk.Chunk{
		testChunk(2023, 0, "a", 1, 0),
		testChunk(2023, 1, "b", 0, 1),
	}); err != nil {
		t.Fatalf("replace: %v", err)
	}

	n, err := repo.DeleteYear(ctx, 2023)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 deleted, got %d", n)
	}

	hits, err := repo.Search(ctx, 2023, []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("expected no hits, got %d", len(hits))
	}
}

func TestParseHit_BadPage(t *testing.T) {
	h := parseHit(db.SearchEntry{Score: 0.5, Fields: map[string]string{"content": "x", "page": "n/a"}})
	if h.Page != 0 || h.Content != "x" || h.Similarity != 0.5 {
		t.Errorf("unexpected hit: %+v", h)
	}
}
