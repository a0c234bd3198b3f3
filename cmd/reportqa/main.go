package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/kailas-cloud/reportqa/internal/config"
	"github.com/kailas-cloud/reportqa/internal/db"
	dbMemory "github.com/kailas-cloud/reportqa/internal/db/memory"
	dbValkey "github.com/kailas-cloud/reportqa/internal/db/valkey"
	"github.com/kailas-cloud/reportqa/internal/domain"
	"github.com/kailas-cloud/reportqa/internal/filestore"
	logpkg "github.com/kailas-cloud/reportqa/internal/logger"
	"github.com/kailas-cloud/reportqa/internal/metrics"
	budgetrepo "github.com/kailas-cloud/reportqa/internal/repository/budget"
	catalogrepo "github.com/kailas-cloud/reportqa/internal/repository/catalog"
	chunkrepo "github.com/kailas-cloud/reportqa/internal/repository/chunk"
	"github.com/kailas-cloud/reportqa/internal/repository/embcache"
	"github.com/kailas-cloud/reportqa/internal/textsplit"
	bedrockLLM "github.com/kailas-cloud/reportqa/internal/transport/bedrock"
	chiTransport "github.com/kailas-cloud/reportqa/internal/transport/chi"
	openaiProv "github.com/kailas-cloud/reportqa/internal/transport/openai"
	budgetuc "github.com/kailas-cloud/reportqa/internal/usecase/budget"
	filesuc "github.com/kailas-cloud/reportqa/internal/usecase/files"
	healthuc "github.com/kailas-cloud/reportqa/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/reportqa/internal/usecase/ingest"
	qauc "github.com/kailas-cloud/reportqa/internal/usecase/qa"
	statsuc "github.com/kailas-cloud/reportqa/internal/usecase/stats"
	usageuc "github.com/kailas-cloud/reportqa/internal/usecase/usage"
	"github.com/kailas-cloud/reportqa/internal/version"
	"github.com/kailas-cloud/reportqa/internal/web"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting reportqa API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("llm_provider", cfg.LLM.Provider),
	)

	store, err := buildStore(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterProviderMetrics()
	metrics.RegisterServiceMetrics()

	// A zero limit is unlimited; usage is counted either way.
	tracker := budgetuc.NewTracker(
		cfg.LLM.Provider,
		cfg.Budget.DailyTokenLimit,
		cfg.Budget.MonthlyTokenLimit,
		budgetuc.Action(cfg.Budget.Action),
		logger,
	).WithStore(ctx, budgetrepo.New(store, budgetrepo.DefaultDailyTTL, budgetrepo.DefaultMonthlyTTL), cfg.Database.KeyPrefix)

	embedder := budgetuc.NewEmbedder(buildEmbedder(cfg, store, logger), tracker, logger)
	completer, err := buildCompleter(ctx, cfg.LLM, logger)
	if err != nil {
		logger.Fatal("Failed to create completion provider", zap.Error(err))
	}
	logger.Info("Providers created",
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.Bool("embedding_cache", cfg.Embedding.Cache),
		zap.Duration("embedding_cache_ttl", cfg.Embedding.CacheTTL()),
		zap.Int64("daily_token_limit", cfg.Budget.DailyTokenLimit),
		zap.Int64("monthly_token_limit", cfg.Budget.MonthlyTokenLimit),
		zap.String("budget_action", cfg.Budget.Action),
	)

	chunkRepo := chunkrepo.New(store, cfg.Database.KeyPrefix, cfg.Embedding.Dimensions, chunkrepo.HNSWConfig{
		M:           cfg.Retrieval.HNSWM,
		EFConstruct: cfg.Retrieval.HNSWEFConstruct,
	})
	rebuilt, err := chunkRepo.EnsureIndex(ctx)
	if err != nil {
		logger.Fatal("Failed to create chunk index", zap.Error(err))
	}
	catalogRepo := catalogrepo.New(store, cfg.Database.KeyPrefix)
	if rebuilt {
		n, err := catalogRepo.Clear(ctx)
		if err != nil {
			logger.Fatal("Failed to reset year catalog", zap.Error(err))
		}
		logger.Warn("Embedding dimensions changed, chunk index rebuilt; run init-data",
			zap.Int("dimensions", cfg.Embedding.Dimensions),
			zap.Int("years_reset", n),
		)
	}

	fileStore, err := filestore.NewLocalStore(filestore.Options{
		Dir:         cfg.Storage.UploadDir,
		MaxSize:     cfg.Storage.MaxFileSize(),
		UploadTypes: cfg.Storage.UploadTypes,
		KnownTypes:  cfg.Storage.IngestTypes,
	})
	if err != nil {
		logger.Fatal("Failed to open upload directory", zap.Error(err))
	}

	splitter, err := textsplit.New(cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap)
	if err != nil {
		logger.Fatal("Invalid chunking settings", zap.Error(err))
	}

	// Use case services
	qaSvc := qauc.New(embedder, budgetuc.NewCompleter(completer, tracker, logger), chunkRepo, catalogRepo, qauc.Options{
		TopK:        cfg.Retrieval.TopK,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	}, logger)
	ingestSvc := ingestuc.New(fileStore, chunkRepo, catalogRepo, embedder, splitter, cfg.Storage.IngestTypes, logger)
	filesSvc := filesuc.New(fileStore, catalogRepo, logger)
	statsSvc := statsuc.New(fileStore, catalogRepo, cfg.Storage.IngestTypes)
	healthSvc := healthuc.New(store, fileStore, newEmbeddingHealthChecker(embedder))
	// bedrock has no free availability call, so only openai reports "completion"
	if hc, ok := completer.(domain.HealthChecker); ok {
		healthSvc.WithCompletion(hc)
	}

	usageSvc := usageuc.New(tracker)

	server := chiTransport.NewServer(
		qaSvc, ingestSvc, filesSvc, statsSvc, healthSvc, usageSvc, cfg.Storage.MaxFileSize(), logger,
	)

	frontend, err := web.Handler()
	if err != nil {
		logger.Fatal("Failed to load frontend", zap.Error(err))
	}

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.ProcessTimeMiddleware)
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	r.NotFound(server.NotFound(frontend))
	chiTransport.HandlerWithOptions(server, chiTransport.ChiServerOptions{
		BaseRouter:       r,
		ErrorHandlerFunc: chiTransport.BadRequestHandler,
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-ID", "X-Process-Time"},
		AllowCredentials: true,
	}).Handler(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           corsHandler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildStore picks the storage backend. Redis Stack speaks the same FT.* dialect as
// valkey-search, so both go through rueidis.
func buildStore(cfg config.DatabaseConfig) (db.Store, error) {
	switch cfg.Driver {
	case "valkey", "redis":
		s, err := dbValkey.NewStore(dbValkey.Config{
			Addrs:    cfg.Addrs,
			Password: cfg.Password,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case "memory":
		return dbMemory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// buildEmbedder assembles the provider side of the decorator chain: OpenAI -> Cached.
// The budget decorator is applied on top by the caller.
func buildEmbedder(cfg config.Config, store db.Store, logger *zap.Logger) domain.Embedder {
	base := openaiProv.NewEmbedder(&openaiProv.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Timeout:    time.Duration(cfg.LLM.TimeoutSec) * time.Second,
		Logger:     logger,
	})
	if !cfg.Embedding.Cache {
		return base
	}
	return embcache.New(base, store, cfg.Database.KeyPrefix, cfg.Embedding.Model, metrics.EmbeddingCacheTotal, logger).
		WithTTL(cfg.Embedding.CacheTTL())
}

func buildCompleter(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (domain.Completer, error) {
	switch cfg.Provider {
	case "bedrock":
		c, err := bedrockLLM.New(ctx, cfg.Bedrock.Region, cfg.Bedrock.ModelID, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "openai":
		return openaiProv.NewCompleter(&openaiProv.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: time.Duration(cfg.TimeoutSec) * time.Second,
			Logger:  logger,
		}), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					if rvr == http.ErrAbortHandler {
						panic(rvr)
					}
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.String("path", r.URL.Path),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
						Success:   false,
						Error:     "internal error",
						ErrorCode: chiTransport.ErrorCodeInternal,
						Timestamp: time.Now().UTC(),
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
