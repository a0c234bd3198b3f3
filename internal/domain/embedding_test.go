package domain

import (
	"context"
	"errors"
	"testing"
)

type stubEmbedder struct {
	result EmbeddingResult
	err    error
	calls  int
}

func (s *stubEmbedder) Embed(_ context.Context, _ string) (EmbeddingResult, error) {
	s.calls++
	return s.result, s.err
}

type stubBatchEmbedder struct {
	stubEmbedder
	batchCalls int
}

func (s *stubBatchEmbedder) BatchEmbed(_ context.Context, texts []string) (BatchEmbeddingResult, error) {
	s.batchCalls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.result.Embedding
	}
	return BatchEmbeddingResult{Embeddings: out, TotalTokens: len(texts)}, nil
}

func TestBatchFallback_AggregatesUsage(t *testing.T) {
	e := &stubEmbedder{result: EmbeddingResult{Embedding: []float32{1}, PromptTokens: 2, TotalTokens: 3}}

	res, err := BatchFallback(context.Background(), e, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 3 {
		t.Fatalf("expected 3 embeddings, got %d", len(res.Embeddings))
	}
	if res.PromptTokens != 6 || res.TotalTokens != 9 {
		t.Errorf("unexpected usage: prompt=%d total=%d", res.PromptTokens, res.TotalTokens)
	}
	if e.calls != 3 {
		t.Errorf("expected 3 calls, got %d", e.calls)
	}
}

func TestBatchFallback_StopsOnError(t *testing.T) {
	sentinel := errors.New("boom")
	e := &stubEmbedder{err: sentinel}

	_, err := BatchFallback(context.Background(), e, []string{"a", "b"})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected wrapped sentinel, got %v", err)
	}
	if e.calls != 1 {
		t.Errorf("expected 1 call, got %d", e.calls)
	}
}

func TestEmbedAll_PrefersBatch(t *testing.T) {
	e := &stubBatchEmbedder{stubEmbedder: stubEmbedder{result: EmbeddingResult{Embedding: []float32{0.5}}}}

	res, err := EmbedAll(context.Background(), e, []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.batchCalls != 1 || e.calls != 0 {
		t.Errorf("expected one batch call, got batch=%d single=%d", e.batchCalls, e.calls)
	}
	if len(res.Embeddings) != 2 {
		t.Errorf("expected 2 embeddings, got %d", len(res.Embeddings))
	}
}

func TestValidationError_Unwraps(t *testing.T) {
	err := NewValidationError("year %d out of range", 1999)
	if !errors.Is(err, ErrValidation) {
		t.Fatal("expected ErrValidation")
	}
	if err.Error() != "year 1999 out of range" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if !errors.Is(ErrFileTooLarge, ErrValidation) {
		t.Error("ErrFileTooLarge must be a validation error")
	}
}

func TestFileTooLargeError(t *testing.T) {
	err := NewFileTooLargeError(50 << 20)
	if !errors.Is(err, ErrFileTooLarge) || !errors.Is(err, ErrValidation) {
		t.Fatalf("expected file-too-large validation error, got %v", err)
	}
	if err.Error() != "file too large, maximum size is 50 MB" {
		t.Errorf("unexpected message %q", err.Error())
	}
}
