package reportqa

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver    string // "valkey", "redis" or "memory"
	addrs     []string
	password  string
	keyPrefix string

	reportsDir  string
	maxFileSize int64

	embedder  Embedder
	completer Completer

	vectorDimensions int
	hnswM            int
	hnswEFConstruct  int
	chunkSize        int
	chunkOverlap     int
	topK             int
	maxTokens        int
	temperature      float32

	dailyTokens   int64
	monthlyTokens int64
	rejectOver    bool

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

func defaultConfig() *clientConfig {
	return &clientConfig{
		keyPrefix:        "reportqa:",
		maxFileSize:      50 << 20,
		vectorDimensions: 1536,
		chunkSize:        1000,
		chunkOverlap:     200,
		topK:             5,
		maxTokens:        500,
		temperature:      0.1,
	}
}

// WithValkey connects the client to a Valkey instance with valkey-search.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "valkey"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedis connects the client to a Redis Stack instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithMemory keeps the index in process memory. Nothing survives Close.
func WithMemory() Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "memory"
		c.addrs = nil
	})
}

// WithKeyPrefix namespaces every database key. Default: "reportqa:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithReportsDir sets the directory holding the annual reports. Required.
func WithReportsDir(dir string) Option {
	return optionFunc(func(c *clientConfig) {
		c.reportsDir = dir
	})
}

// WithEmbedder sets the text embedding provider. Required.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithCompleter sets the chat completion provider. Required.
func WithCompleter(l Completer) Option {
	return optionFunc(func(c *clientConfig) {
		c.completer = l
	})
}

// WithVectorDimensions sets the embedding size of the chunk index.
// Defaults to 1536 (text-embedding-ada-002).
func WithVectorDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.vectorDimensions = dim
	})
}

// WithHNSW configures HNSW index parameters (M and EF construction).
func WithHNSW(m, efConstruct int) Option {
	return optionFunc(func(c *clientConfig) {
		c.hnswM = m
		c.hnswEFConstruct = efConstruct
	})
}

// WithChunking sets the passage size and overlap in characters. Defaults: 1000 and 200.
func WithChunking(size, overlap int) Option {
	return optionFunc(func(c *clientConfig) {
		c.chunkSize = size
		c.chunkOverlap = overlap
	})
}

// WithTopK sets how many passages are retrieved per question. Default: 5.
func WithTopK(k int) Option {
	return optionFunc(func(c *clientConfig) {
		c.topK = k
	})
}

// WithGeneration sets the completion length cap and temperature.
// Defaults: 500 tokens, 0.1.
func WithGeneration(maxTokens int, temperature float32) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxTokens = maxTokens
		c.temperature = temperature
	})
}

// WithTokenBudget caps provider tokens per UTC day and month; 0 is unlimited.
// With reject set, calls over budget fail with ErrBudgetExceeded, otherwise they
// are only logged.
func WithTokenBudget(daily, monthly int64, reject bool) Option {
	return optionFunc(func(c *clientConfig) {
		c.dailyTokens = daily
		c.monthlyTokens = monthly
		c.rejectOver = reject
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
