package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/reportqa/internal/db/memory"
	"github.com/kailas-cloud/reportqa/internal/domain"
	"github.com/kailas-cloud/reportqa/internal/domain/report"
)

// --- Mocks ---

type failingStore struct {
	*memory.Store
	scanErr   error
	existsErr error
}

func (f *failingStore) Exists(ctx context.Context, key string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	return f.Store.Exists(ctx, key)
}

func (f *failingStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	return f.Store.Scan(ctx, pattern)
}

func processed(year int) report.ProcessedYear {
	return report.ProcessedYear{
		Year:        year,
		Source:      "apple_2023.pdf",
		ContentHash: "abc",
		Pages:       80,
		Chunks:      412,
		RunID:       "run-1",
		ProcessedAt: time.Date(2024, 5, 1, 10, 0, 0, 123, time.UTC),
	}
}

func TestPutGet(t *testing.T) {
	repo := New(memory.NewStore(), "reportqa:")
	ctx := context.Background()

	if err := repo.Put(ctx, processed(2023)); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := repo.Get(ctx, 2023)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	want := processed(2023)
	if !got.ProcessedAt.Equal(want.ProcessedAt) {
		t.Errorf("processed_at = %v, want %v", got.ProcessedAt, want.ProcessedAt)
	}
	got.ProcessedAt = want.ProcessedAt
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo := New(memory.NewStore(), "reportqa:")
	_, err := repo.Get(context.Background(), 2019)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestList_SortedAndSkipsGarbage(t *testing.T) {
	s := memory.NewStore()
	repo := New(s, "reportqa:")
	ctx := context.Background()

	for _, y := range []int{2024, 2021, 2023} {
		if err := repo.Put(ctx, processed(y)); err != nil {
			t.Fatalf("put %d: %v", y, err)
		}
	}
	if err := s.HSet(ctx, "reportqa:year:bogus", map[string]string{"year": "x"}); err != nil {
		t.Fatalf("hset: %v", err)
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 records, got %d", len(list))
	}
	for i, want := range []int{2021, 2023, 2024} {
		if list[i].Year != want {
			t.Errorf("list[%d].Year = %d, want %d", i, list[i].Year, want)
		}
	}
}

func TestList_ScanError(t *testing.T) {
	repo := New(&failingStore{Store: memory.NewStore(), scanErr: errors.New("timeout")}, "reportqa:")
	if _, err := repo.List(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestDelete(t *testing.T) {
	repo := New(memory.NewStore(), "reportqa:")
	ctx := context.Background()

	if err := repo.Put(ctx, processed(2023)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := repo.Delete(ctx, 2023); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.Get(ctx, 2023); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := repo.Delete(ctx, 2023); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestGet_ExistsError(t *testing.T) {
	repo := New(&failingStore{Store: memory.NewStore(), existsErr: errors.New("timeout")}, "reportqa:")
	_, err := repo.Get(context.Background(), 2023)
	if err == nil || errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestClear(t *testing.T) {
	s := memory.NewStore()
	repo := New(s, "reportqa:")
	ctx := context.Background()

	for _, y := range []int{2022, 2023} {
		if err := repo.Put(ctx, processed(y)); err != nil {
			t.Fatalf("put %d: %v", y, err)
		}
	}
	if err := s.Set(ctx, "reportqa:usage:day", []byte("5")); err != nil {
		t.Fatal(err)
	}

	n, err := repo.Clear(ctx)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 cleared, got %d", n)
	}
	list, err := repo.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Errorf("expected empty catalog, got %+v", list)
	}
	if _, err := s.Get(ctx, "reportqa:usage:day"); err != nil {
		t.Errorf("clear must not touch other keys: %v", err)
	}

	if n, err := repo.Clear(ctx); err != nil || n != 0 {
		t.Errorf("second clear: n=%d err=%v", n, err)
	}
}
