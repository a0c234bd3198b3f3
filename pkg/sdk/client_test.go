package reportqa

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// --- Mocks ---

type mockEmbedder struct{}

func (mockEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	return EmbeddingResult{
		Embedding:    []float32{1, float32(len(text)%7) + 1, 0.5},
		PromptTokens: 2,
		TotalTokens:  2,
	}, nil
}

type mockCompleter struct {
	text  string
	err   error
	calls int
	last  CompletionRequest
}

func (m *mockCompleter) Complete(_ context.Context, req CompletionRequest) (CompletionResult, error) {
	m.calls++
	m.last = req
	if m.err != nil {
		return CompletionResult{}, m.err
	}
	return CompletionResult{Text: m.text, PromptTokens: 30, CompletionTokens: 12}, nil
}

// --- Helpers ---

func writeReport(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func newTestClient(t *testing.T, llm *mockCompleter, opts ...Option) (*Client, string) {
	t.Helper()
	dir := t.TempDir()
	base := []Option{
		WithMemory(),
		WithReportsDir(dir),
		WithVectorDimensions(3),
		WithEmbedder(mockEmbedder{}),
		WithCompleter(llm),
	}
	c, err := New(context.Background(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)
	return c, dir
}

// --- Tests ---

func TestNew_RequiresOptions(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		opts []Option
		want string
	}{
		{"no database", []Option{WithReportsDir(dir), WithEmbedder(mockEmbedder{}), WithCompleter(&mockCompleter{})}, "database"},
		{"no reports dir", []Option{WithMemory(), WithEmbedder(mockEmbedder{}), WithCompleter(&mockCompleter{})}, "reports directory"},
		{"no embedder", []Option{WithMemory(), WithReportsDir(dir), WithCompleter(&mockCompleter{})}, "embedder"},
		{"no completer", []Option{WithMemory(), WithReportsDir(dir), WithEmbedder(mockEmbedder{})}, "completer"},
		{"negative budget", []Option{
			WithMemory(), WithReportsDir(dir), WithEmbedder(mockEmbedder{}), WithCompleter(&mockCompleter{}),
			WithTokenBudget(-1, 0, true),
		}, "budget"},
		{"bad chunking", []Option{
			WithMemory(), WithReportsDir(dir), WithEmbedder(mockEmbedder{}), WithCompleter(&mockCompleter{}),
			WithChunking(100, 100),
		}, "overlap"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(context.Background(), tc.opts...)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestIngestAndAsk(t *testing.T) {
	llm := &mockCompleter{text: "Net sales were $383.3 billion."}
	c, dir := newTestClient(t, llm, WithGeneration(300, 0.2))
	writeReport(t, dir, "apple_2023.txt", "Total net sales for 2023 were $383.3 billion.")

	sum, err := c.Ingest(context.Background(), false)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !slices.Equal(sum.Processed, []int{2023}) || sum.Chunks != 1 || sum.RunID == "" {
		t.Fatalf("unexpected summary %+v", sum)
	}

	ans, err := c.Ask(context.Background(), "What were net sales?", 2023)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ans.Year != 2023 || ans.Text != llm.text || !ans.Found {
		t.Errorf("unexpected answer %+v", ans)
	}
	if ans.Confidence < 0 || ans.Confidence > 1 {
		t.Errorf("confidence out of range: %f", ans.Confidence)
	}
	if len(ans.Citations) != 1 || ans.Citations[0].Source != "apple_annual_report_2023.pdf" {
		t.Errorf("unexpected citations %+v", ans.Citations)
	}
	if llm.last.MaxTokens != 300 || llm.last.Temperature != 0.2 {
		t.Errorf("generation settings not forwarded: %+v", llm.last)
	}

	sum, err = c.Ingest(context.Background(), false)
	if err != nil {
		t.Fatalf("second Ingest: %v", err)
	}
	if !slices.Equal(sum.Skipped, []int{2023}) {
		t.Errorf("expected unchanged report to be skipped, got %+v", sum)
	}
}

func TestAsk_Errors(t *testing.T) {
	llm := &mockCompleter{text: "ok"}
	c, dir := newTestClient(t, llm)
	writeReport(t, dir, "apple_2023.txt", "Revenue grew.")
	if _, err := c.Ingest(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	if _, err := c.Ask(context.Background(), "  ", 2023); !errors.Is(err, ErrValidation) {
		t.Errorf("empty question: expected ErrValidation, got %v", err)
	}
	if _, err := c.Ask(context.Background(), "What was revenue?", 2022); !errors.Is(err, ErrValidation) {
		t.Errorf("unprocessed year: expected ErrValidation, got %v", err)
	}

	llm.err = errors.New("provider down")
	if _, err := c.Ask(context.Background(), "What was revenue?", 2023); !errors.Is(err, ErrExternalService) {
		t.Errorf("provider failure: expected ErrExternalService, got %v", err)
	}
}

func TestAskAllYears(t *testing.T) {
	llm := &mockCompleter{text: "answer"}
	c, dir := newTestClient(t, llm)
	writeReport(t, dir, "apple_2022.txt", "Net sales were $394.3 billion.")
	writeReport(t, dir, "apple_2023.txt", "Net sales were $383.3 billion.")
	if _, err := c.Ingest(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	res, err := c.AskAllYears(context.Background(), "What were net sales?")
	if err != nil {
		t.Fatalf("AskAllYears: %v", err)
	}
	if len(res) != 2 || res[2022].Year != 2022 || res[2023].Year != 2023 {
		t.Errorf("expected one answer per year, got %+v", res)
	}
	if llm.calls != 2 {
		t.Errorf("expected 2 completions, got %d", llm.calls)
	}
}

func TestYearsAndStats(t *testing.T) {
	c, dir := newTestClient(t, &mockCompleter{})
	writeReport(t, dir, "apple_2021.txt", "2021 report.")
	writeReport(t, dir, "apple_2022.txt", "2022 report.")
	writeReport(t, dir, "notes.txt", "no year here")

	years, err := c.Years()
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(years, []int{2021, 2022}) {
		t.Errorf("unexpected years %v", years)
	}

	if _, err := c.Ingest(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	st, err := c.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(st.ProcessedYears, []int{2021, 2022}) || st.TotalChunks != 2 {
		t.Errorf("unexpected stats %+v", st)
	}
	if len(c.ExampleQueries()) == 0 {
		t.Error("expected example queries")
	}
}

func TestUsageCountsProviderTokens(t *testing.T) {
	c, dir := newTestClient(t, &mockCompleter{text: "ok"})
	writeReport(t, dir, "apple_2023.txt", "Revenue grew.")
	if _, err := c.Ingest(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Ask(context.Background(), "What was revenue?", 2023); err != nil {
		t.Fatal(err)
	}

	u, err := c.Usage(context.Background(), PeriodDay)
	if err != nil {
		t.Fatal(err)
	}
	// 2 for the ingested chunk, 2 for the question, 42 for the completion
	if u.Tokens != 46 {
		t.Errorf("expected 46 tokens, got %d", u.Tokens)
	}
	if u.Budget.TokensLimit != 0 || u.Budget.TokensRemaining != -1 || u.Budget.IsExhausted {
		t.Errorf("expected unlimited budget, got %+v", u.Budget)
	}

	if _, err := c.Usage(context.Background(), "week"); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for unknown period, got %v", err)
	}
}

func TestTokenBudgetRejects(t *testing.T) {
	llm := &mockCompleter{text: "ok"}
	c, dir := newTestClient(t, llm, WithTokenBudget(10, 0, true))
	writeReport(t, dir, "apple_2023.txt", "Revenue grew.")
	if _, err := c.Ingest(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	if _, err := c.Ask(context.Background(), "What was revenue?", 2023); err != nil {
		t.Fatalf("first question fits the budget: %v", err)
	}
	if _, err := c.Ask(context.Background(), "What was revenue?", 2023); !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("expected ErrBudgetExceeded, got %v", err)
	}
	if llm.calls != 1 {
		t.Errorf("provider must not be called over budget, got %d calls", llm.calls)
	}

	u, err := c.Usage(context.Background(), PeriodDay)
	if err != nil {
		t.Fatal(err)
	}
	if !u.Budget.IsExhausted || u.Budget.TokensRemaining != 0 {
		t.Errorf("expected exhausted budget, got %+v", u.Budget)
	}
}

func TestHealth(t *testing.T) {
	c, _ := newTestClient(t, &mockCompleter{})

	h := c.Health(context.Background())
	if h.Status != "healthy" {
		t.Errorf("expected healthy, got %+v", h)
	}
	for _, name := range []string{"database", "storage", "embedding"} {
		if h.Checks[name] != "ok" {
			t.Errorf("expected %s ok, got %q", name, h.Checks[name])
		}
	}
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestPrometheusMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, _ := newTestClient(t, &mockCompleter{}, WithPrometheus(reg))
	// a second client on the same registry reuses the collectors
	newTestClient(t, &mockCompleter{}, WithPrometheus(reg))

	if _, err := c.Ask(context.Background(), "What was revenue?", 2023); err == nil {
		t.Fatal("expected error for unprocessed year")
	}
	if err := c.Ping(context.Background()); err != nil {
		t.Fatal(err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "reportqa_sdk_operations_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			var op, status string
			for _, lp := range m.GetLabel() {
				switch lp.GetName() {
				case "operation":
					op = lp.GetValue()
				case "status":
					status = lp.GetValue()
				}
			}
			got[op+"/"+status] = m.GetCounter().GetValue()
		}
	}
	if got["ask/error"] != 1 || got["ping/ok"] != 1 {
		t.Errorf("unexpected operation counters %v", got)
	}
}

func TestPrometheusMetrics_AnswersByYear(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, dir := newTestClient(t, &mockCompleter{text: "Net sales were $383.3 billion."}, WithPrometheus(reg))
	writeReport(t, dir, "apple_2023.txt", "Total net sales for 2023 were $383.3 billion.")
	if _, err := c.Ingest(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	if _, err := c.Ask(context.Background(), "What were net sales?", 2023); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Ask(context.Background(), "What were net sales?", 2019); err == nil {
		t.Fatal("expected error for unprocessed year")
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]float64{}
	var observed uint64
	for _, mf := range families {
		switch mf.GetName() {
		case "reportqa_sdk_answers_total":
			for _, m := range mf.GetMetric() {
				var year, outcome string
				for _, lp := range m.GetLabel() {
					switch lp.GetName() {
					case "year":
						year = lp.GetValue()
					case "outcome":
						outcome = lp.GetValue()
					}
				}
				got[year+"/"+outcome] = m.GetCounter().GetValue()
			}
		case "reportqa_sdk_answer_confidence":
			for _, m := range mf.GetMetric() {
				observed += m.GetHistogram().GetSampleCount()
			}
		}
	}
	if got["2023/answered"] != 1 || got["2019/error"] != 1 {
		t.Errorf("unexpected answer counters %v", got)
	}
	if observed != 1 {
		t.Errorf("expected one confidence sample, got %d", observed)
	}
}
