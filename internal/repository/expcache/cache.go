// Package expcache caches expanded queries in the key-value store.
package expcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/lectern/internal/db"
	"github.com/kailas-cloud/lectern/internal/domain"
)

var cacheKeyPrefix = domain.KeyPrefix + "exp_cache:"

// storeTimeout bounds each cache round trip so a stalled store degrades to a miss.
const storeTimeout = 250 * time.Millisecond

// store is the consumer interface for the expansion cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Cache maps normalized queries to their expansions.
// Store failures degrade to misses.
type Cache struct {
	store      store
	ttl        time.Duration
	timeout    time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates an expansion cache. A zero ttl keeps entries without expiry.
func New(s store, ttl time.Duration, cacheTotal *prometheus.CounterVec, logger *zap.Logger) *Cache {
	return &Cache{store: s, ttl: ttl, timeout: storeTimeout, cacheTotal: cacheTotal, logger: logger}
}

// Get returns the cached expansion for query.
func (c *Cache) Get(ctx context.Context, query string) (string, bool) {
	key := cacheKey(query)
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached expansion", zap.String("key", key), zap.Error(err))
		}
		c.inc("miss")
		return "", false
	}
	if len(data) == 0 {
		c.inc("miss")
		return "", false
	}
	c.inc("hit")
	return string(data), true
}

// Put stores the expansion for query.
func (c *Cache) Put(ctx context.Context, query, expanded string) {
	key := cacheKey(query)
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var err error
	if c.ttl > 0 {
		err = c.store.SetWithTTL(ctx, key, []byte(expanded), c.ttl)
	} else {
		err = c.store.Set(ctx, key, []byte(expanded))
	}
	if err != nil {
		c.logger.Warn("Failed to cache expansion", zap.String("key", key), zap.Error(err))
	}
}

func (c *Cache) inc(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

// normalize folds case and collapses whitespace so trivially different queries share an entry.
func normalize(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

func cacheKey(query string) string {
	h := sha256.Sum256([]byte(normalize(query)))
	return cacheKeyPrefix + hex.EncodeToString(h[:])
}
