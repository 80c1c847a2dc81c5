package discover

import (
	"context"

	"github.com/kailas-cloud/lectern/internal/domain/topic"
	"github.com/kailas-cloud/lectern/internal/usecase/retrieval"
)

// Expander broadens a query; it falls back to the input on failure.
type Expander interface {
	Expand(ctx context.Context, query string) (string, error)
}

// Searcher runs a retrieval with default options.
type Searcher interface {
	Search(ctx context.Context, query string) (retrieval.Response, error)
}

// RelatedGenerator suggests follow-up queries; it yields an empty list on failure.
type RelatedGenerator interface {
	Related(ctx context.Context, query string) ([]topic.Related, error)
}
