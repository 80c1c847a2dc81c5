package learningpath

import (
	"context"

	"github.com/kailas-cloud/lectern/internal/domain"
)

// StructuredCompleter produces schema-constrained completions.
type StructuredCompleter interface {
	CompleteStructured(ctx context.Context, req domain.CompletionRequest, name string, out any) (domain.CompletionResult, error)
}
