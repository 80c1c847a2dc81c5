package domain

import (
	"context"
	"sync/atomic"
)

type usageKey struct{}

// Usage collects AI token usage for a single HTTP request.
// The handler puts it into the context before calling a service; services record
// after each provider call; the handler reads it for response headers.
// Stages may run concurrently, so counters are atomic.
type Usage struct {
	embeddingTokens  atomic.Int64
	completionTokens atomic.Int64
	used             atomic.Bool
}

// NewContextWithUsage returns a context with an embedded usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *Usage) {
	u := &Usage{}
	return context.WithValue(ctx, usageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *Usage {
	u, _ := ctx.Value(usageKey{}).(*Usage)
	return u
}

// AddEmbeddingTokens records tokens consumed by an embedding call (0 on a cache hit).
func (u *Usage) AddEmbeddingTokens(n int) {
	if u != nil {
		u.embeddingTokens.Add(int64(n))
		u.used.Store(true)
	}
}

// AddCompletionTokens records prompt+completion tokens consumed by a model call.
func (u *Usage) AddCompletionTokens(n int) {
	if u != nil {
		u.completionTokens.Add(int64(n))
		u.used.Store(true)
	}
}

// EmbeddingTokens returns the recorded embedding tokens.
func (u *Usage) EmbeddingTokens() int64 {
	if u == nil {
		return 0
	}
	return u.embeddingTokens.Load()
}

// CompletionTokens returns the recorded completion tokens.
func (u *Usage) CompletionTokens() int64 {
	if u == nil {
		return 0
	}
	return u.completionTokens.Load()
}

// Used reports whether any provider was called, even with zero tokens.
func (u *Usage) Used() bool {
	return u != nil && u.used.Load()
}
