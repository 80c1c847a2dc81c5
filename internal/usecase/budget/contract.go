package budget

import (
	"context"
	"time"
)

// Store persists window counters. Add must be safe to repeat.
type Store interface {
	Add(ctx context.Context, key string, tokens int64, ttl time.Duration) error
	Load(ctx context.Context, key string) (int64, error)
}
