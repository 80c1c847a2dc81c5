package lectern

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
	addrs    []string
	password string

	embedder Embedder

	indexName         string
	vectorField       string
	topK              int
	minScore          *float64
	thumbnailTemplate string
	passageChars      int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithRedis configures the Redis instance holding the passage index.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithEmbedder sets the query embedding provider. Required.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithIndex selects the FT index and its vector field.
// Defaults: "passages" and "vector".
func WithIndex(name, vectorField string) Option {
	return optionFunc(func(c *clientConfig) {
		c.indexName = name
		c.vectorField = vectorField
	})
}

// WithTopK sets how many nearest passages are fetched per search. Default: 50.
func WithTopK(k int) Option {
	return optionFunc(func(c *clientConfig) {
		c.topK = k
	})
}

// WithMinScore sets the similarity floor in [0,1]. Default: 0.35.
func WithMinScore(score float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.minScore = &score
	})
}

// WithThumbnailTemplate sets the thumbnail URL template; {video_id} is substituted.
func WithThumbnailTemplate(tmpl string) Option {
	return optionFunc(func(c *clientConfig) {
		c.thumbnailTemplate = tmpl
	})
}

// WithPassageChars bounds the passage text kept per timestamp. Default: 200.
func WithPassageChars(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.passageChars = n
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
