// Package embcache caches query embeddings in the key-value store.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/rueidis"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/lectern/internal/db"
	"github.com/kailas-cloud/lectern/internal/domain"
)

var cacheKeyPrefix = domain.KeyPrefix + "emb_cache:"

// store is the consumer interface for the embedding cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Config scopes the cache.
type Config struct {
	// Model namespaces keys so vectors of another model are never served.
	Model string
	// Dimensions, when positive, turns entries of any other length into misses.
	Dimensions int
	// TTL of zero keeps entries without expiry.
	TTL time.Duration
}

// CachedEmbedder caches query embeddings and collapses concurrent misses for the same query.
type CachedEmbedder struct {
	inner      domain.Embedder
	store      store
	cfg        Config
	prefix     string
	group      singleflight.Group
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"/"shared"), passed explicitly.
func New(
	inner domain.Embedder,
	s store,
	cfg Config,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedEmbedder {
	prefix := cacheKeyPrefix
	if cfg.Model != "" {
		prefix += cfg.Model + ":"
	}
	return &CachedEmbedder{
		inner:      inner,
		store:      s,
		cfg:        cfg,
		prefix:     prefix,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Embed returns a cached embedding or calls the inner embedder.
// Only the call that reached the provider reports tokens; hits and
// callers that joined an in-flight miss report zero.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := c.cacheKey(text)

	if vec, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit")
		return domain.EmbeddingResult{Embedding: vec}, nil
	}

	// The shared call outlives any single caller; each caller may still leave on its own ctx.
	shared := context.WithoutCancel(ctx)
	var leader bool
	ch := c.group.DoChan(key, func() (any, error) {
		leader = true
		res, err := c.inner.Embed(shared, text)
		if err != nil {
			return nil, err
		}
		c.putToCache(shared, key, res.Embedding)
		return res, nil
	})

	var r singleflight.Result
	select {
	case <-ctx.Done():
		return domain.EmbeddingResult{}, fmt.Errorf("embed query: %w", ctx.Err())
	case r = <-ch:
	}
	if leader {
		c.incCache("miss")
	} else {
		c.incCache("shared")
	}
	if r.Err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed query: %w", r.Err)
	}

	res, _ := r.Val.(domain.EmbeddingResult)
	if !leader {
		res.PromptTokens, res.TotalTokens = 0, 0
	}
	return res, nil
}

func (c *CachedEmbedder) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

// cacheKey hashes the query with runs of whitespace collapsed. Case is kept.
func (c *CachedEmbedder) cacheKey(text string) string {
	h := sha256.Sum256([]byte(strings.Join(strings.Fields(text), " ")))
	return c.prefix + hex.EncodeToString(h[:])
}

func (c *CachedEmbedder) getFromCache(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached embedding", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	if len(data) == 0 {
		return nil, false
	}

	vec, err := decodeVector(data)
	if err != nil {
		c.logger.Warn("Failed to parse cached embedding", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if c.cfg.Dimensions > 0 && len(vec) != c.cfg.Dimensions {
		c.logger.Debug("Cached embedding has stale dimensions",
			zap.String("key", key),
			zap.Int("cached", len(vec)),
			zap.Int("expected", c.cfg.Dimensions),
		)
		return nil, false
	}
	return vec, true
}

func (c *CachedEmbedder) putToCache(ctx context.Context, key string, vec []float32) {
	data := encodeVector(vec)
	var err error
	if c.cfg.TTL > 0 {
		err = c.store.SetWithTTL(ctx, key, data, c.cfg.TTL)
	} else {
		err = c.store.Set(ctx, key, data)
	}
	if err != nil {
		c.logger.Warn("Failed to cache embedding", zap.String("key", key), zap.Error(err))
	}
}

// encodeVector uses the FLOAT32 blob layout of the passage index vectors.
func encodeVector(v []float32) []byte {
	return []byte(rueidis.VectorString32(v))
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("embedding cache entry of %d bytes is not a float32 vector", len(data))
	}
	return rueidis.ToVector32(string(data)), nil
}
