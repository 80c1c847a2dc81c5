// Package db declares what lectern needs from Redis: passage KNN search,
// cache entries and budget counters. Consumers depend on the narrow interfaces.
package db

import (
	"context"
	"time"
)

// Store is the full surface implemented by db/redis.
type Store interface {
	Searcher
	Cache
	Counters
	Ping(ctx context.Context) error
	WaitForReady(ctx context.Context, timeout time.Duration) error
	Close()
}

// Searcher runs read-only vector search over an FT index built by the ingestion job.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
}

// Cache stores opaque values such as query embeddings and expansions.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Counters keeps integer counters that expire with their budget window.
type Counters interface {
	Get(ctx context.Context, key string) ([]byte, error)
	IncrBy(ctx context.Context, key string, val int64) error
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}
