package reportqa

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/reportqa/internal/db"
	dbMemory "github.com/kailas-cloud/reportqa/internal/db/memory"
	dbValkey "github.com/kailas-cloud/reportqa/internal/db/valkey"
	"github.com/kailas-cloud/reportqa/internal/domain/answer"
	"github.com/kailas-cloud/reportqa/internal/domain/query"
	domusage "github.com/kailas-cloud/reportqa/internal/domain/usage"
	"github.com/kailas-cloud/reportqa/internal/filestore"
	budgetrepo "github.com/kailas-cloud/reportqa/internal/repository/budget"
	catalogrepo "github.com/kailas-cloud/reportqa/internal/repository/catalog"
	chunkrepo "github.com/kailas-cloud/reportqa/internal/repository/chunk"
	"github.com/kailas-cloud/reportqa/internal/textsplit"
	budgetuc "github.com/kailas-cloud/reportqa/internal/usecase/budget"
	healthuc "github.com/kailas-cloud/reportqa/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/reportqa/internal/usecase/ingest"
	qauc "github.com/kailas-cloud/reportqa/internal/usecase/qa"
	statsuc "github.com/kailas-cloud/reportqa/internal/usecase/stats"
	usageuc "github.com/kailas-cloud/reportqa/internal/usecase/usage"
)

const defaultReadinessTimeout = 10 * time.Second

// budgetScope names the SDK counters so they never mix with a server's.
const budgetScope = "sdk"

var reportTypes = []string{".pdf", ".txt"}

// Internal interfaces for substitution in tests.
type qaUseCase interface {
	Query(ctx context.Context, q query.Query) (answer.Result, error)
	QueryAllYears(ctx context.Context, q query.Query) (map[int]answer.Result, error)
	ExampleQueries() []string
}

type ingestUseCase interface {
	Initialize(ctx context.Context, force bool) (ingestuc.Summary, error)
}

type statsUseCase interface {
	Years() ([]int, error)
	Stats(ctx context.Context) (statsuc.Stats, error)
}

// Client is the reportqa SDK entry point.
type Client struct {
	store     db.Store
	qaSvc     qaUseCase
	ingestSvc ingestUseCase
	statsSvc  statsUseCase
	healthSvc healthUseCase
	usageSvc  usageUseCase
	obs       *observer
}

// New creates a Client, connects to the database and prepares the chunk index.
// The provided context is used for the readiness check and index creation.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o.apply(cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}

	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("reportqa: database not ready: %w", err)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		store.Close()
		return nil, err
	}

	c, err := wireClient(ctx, store, cfg, obs)
	if err != nil {
		store.Close()
		return nil, err
	}
	return c, nil
}

func (cfg *clientConfig) validate() error {
	switch {
	case cfg.driver == "":
		return errors.New("reportqa: database required (use WithValkey, WithRedis or WithMemory)")
	case cfg.reportsDir == "":
		return errors.New("reportqa: reports directory required (use WithReportsDir)")
	case cfg.embedder == nil:
		return errors.New("reportqa: embedder required (use WithEmbedder)")
	case cfg.completer == nil:
		return errors.New("reportqa: completer required (use WithCompleter)")
	case cfg.vectorDimensions <= 0:
		return fmt.Errorf("reportqa: vector dimensions must be positive, got %d", cfg.vectorDimensions)
	case cfg.dailyTokens < 0 || cfg.monthlyTokens < 0:
		return errors.New("reportqa: token budget must not be negative")
	}
	return nil
}

func createStore(cfg *clientConfig) (db.Store, error) {
	switch cfg.driver {
	case "valkey", "redis":
		s, err := dbValkey.NewStore(dbValkey.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("reportqa: create %s store: %w", cfg.driver, err)
		}
		return s, nil
	case "memory":
		return dbMemory.NewStore(), nil
	default:
		return nil, fmt.Errorf("reportqa: unknown driver %q", cfg.driver)
	}
}

func wireClient(ctx context.Context, store db.Store, cfg *clientConfig, obs *observer) (*Client, error) {
	chunkRepo := chunkrepo.New(store, cfg.keyPrefix, cfg.vectorDimensions, chunkrepo.HNSWConfig{
		M:           cfg.hnswM,
		EFConstruct: cfg.hnswEFConstruct,
	})
	rebuilt, err := chunkRepo.EnsureIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("reportqa: create chunk index: %w", err)
	}
	catalogRepo := catalogrepo.New(store, cfg.keyPrefix)
	if rebuilt {
		if _, err := catalogRepo.Clear(ctx); err != nil {
			return nil, fmt.Errorf("reportqa: reset year catalog: %w", err)
		}
	}

	files, err := filestore.NewLocalStore(filestore.Options{
		Dir:         cfg.reportsDir,
		MaxSize:     cfg.maxFileSize,
		UploadTypes: []string{".pdf"},
		KnownTypes:  reportTypes,
	})
	if err != nil {
		return nil, fmt.Errorf("reportqa: open reports directory: %w", err)
	}

	splitter, err := textsplit.New(cfg.chunkSize, cfg.chunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("reportqa: %w", err)
	}

	action := budgetuc.ActionWarn
	if cfg.rejectOver {
		action = budgetuc.ActionReject
	}
	tracker := budgetuc.NewTracker(budgetScope, cfg.dailyTokens, cfg.monthlyTokens, action, nil).
		WithStore(ctx, budgetrepo.New(store, budgetrepo.DefaultDailyTTL, budgetrepo.DefaultMonthlyTTL), cfg.keyPrefix)

	embedder := budgetuc.NewEmbedder(&embedderAdapter{inner: cfg.embedder}, tracker, nil)
	completer := budgetuc.NewCompleter(&completerAdapter{inner: cfg.completer}, tracker, nil)

	return &Client{
		store: store,
		qaSvc: qauc.New(embedder, completer, chunkRepo, catalogRepo, qauc.Options{
			TopK:        cfg.topK,
			MaxTokens:   cfg.maxTokens,
			Temperature: cfg.temperature,
		}, nil),
		ingestSvc: ingestuc.New(files, chunkRepo, catalogRepo, embedder, splitter, reportTypes, nil),
		statsSvc:  statsuc.New(files, catalogRepo, reportTypes),
		healthSvc: healthuc.New(store, files, embedder),
		usageSvc:  usageuc.New(tracker),
		obs:       obs,
	}, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Ingest indexes every report in the reports directory. Reports unchanged since
// the last run are skipped unless force is set.
func (c *Client) Ingest(ctx context.Context, force bool) (_ IngestSummary, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ingest", start, err) }()

	sum, err := c.ingestSvc.Initialize(ctx, force)
	if err != nil {
		return IngestSummary{}, fmt.Errorf("ingest: %w", err)
	}
	return IngestSummary{
		RunID:     sum.RunID,
		Processed: sum.Processed,
		Skipped:   sum.Skipped,
		Pruned:    sum.Pruned,
		Chunks:    sum.Chunks,
	}, nil
}

// Ask answers question from the report of year. The year must be ingested.
func (c *Client) Ask(ctx context.Context, question string, year int) (ans Answer, err error) {
	start := time.Now()
	defer func() {
		c.obs.observe("ask", start, err, "year", year)
		c.obs.observeAnswer(year, ans, err)
	}()

	q, err := query.New(question, &year, false)
	if err != nil {
		return Answer{}, err
	}
	res, err := c.qaSvc.Query(ctx, q)
	if err != nil {
		return Answer{}, fmt.Errorf("ask: %w", err)
	}
	return answerFromResult(res), nil
}

// AskAllYears answers question once per ingested year, keyed by year.
func (c *Client) AskAllYears(ctx context.Context, question string) (_ map[int]Answer, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ask_all_years", start, err) }()

	q, err := query.New(question, nil, true)
	if err != nil {
		return nil, err
	}
	results, err := c.qaSvc.QueryAllYears(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("ask all years: %w", err)
	}
	out := make(map[int]Answer, len(results))
	for year, res := range results {
		out[year] = answerFromResult(res)
		c.obs.observeAnswer(year, out[year], nil)
	}
	return out, nil
}

// ExampleQueries returns sample questions about an annual report.
func (c *Client) ExampleQueries() []string {
	return c.qaSvc.ExampleQueries()
}

// Years lists the report years present in the reports directory, ascending.
func (c *Client) Years() (_ []int, err error) {
	start := time.Now()
	defer func() { c.obs.observe("years", start, err) }()

	return c.statsSvc.Years()
}

// Stats summarizes available and ingested reports.
func (c *Client) Stats(ctx context.Context) (_ Stats, err error) {
	start := time.Now()
	defer func() { c.obs.observe("stats", start, err) }()

	s, err := c.statsSvc.Stats(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	return Stats{
		AvailableYears: s.AvailableYears,
		ProcessedYears: s.ProcessedYears,
		TotalDocuments: s.TotalDocuments,
		TotalChunks:    s.TotalChunks,
		LastUpdated:    s.LastUpdated,
	}, nil
}

func answerFromResult(r answer.Result) Answer {
	cites := make([]Citation, len(r.Citations))
	for i, c := range r.Citations {
		cites[i] = Citation{Text: c.Text, Page: c.Page, Source: c.Source}
	}
	return Answer{
		Year:       r.Year,
		Question:   r.Query,
		Text:       r.Answer,
		Found:      r.Answer != answer.NotFoundAnswer,
		Confidence: r.Confidence,
		Citations:  cites,
		Duration:   r.ProcessingTime,
	}
}

// usageUseCase is the internal interface for usage reports.
type usageUseCase interface {
	Report(ctx context.Context, period string) (domusage.Report, error)
}
