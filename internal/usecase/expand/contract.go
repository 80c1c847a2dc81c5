package expand

import (
	"context"

	"github.com/kailas-cloud/lectern/internal/domain"
)

// Completer produces free-text completions.
type Completer interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (domain.CompletionResult, error)
}

// Cache stores expansions by query. Implementations treat failures as misses.
type Cache interface {
	Get(ctx context.Context, query string) (string, bool)
	Put(ctx context.Context, query, expanded string)
}
