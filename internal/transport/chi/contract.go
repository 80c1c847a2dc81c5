package chi

import (
	"context"

	"github.com/kailas-cloud/lectern/internal/domain"
	"github.com/kailas-cloud/lectern/internal/domain/path"
	"github.com/kailas-cloud/lectern/internal/domain/stream"
	"github.com/kailas-cloud/lectern/internal/domain/topic"
	domusage "github.com/kailas-cloud/lectern/internal/domain/usage"
	"github.com/kailas-cloud/lectern/internal/domain/video"
	discoveruc "github.com/kailas-cloud/lectern/internal/usecase/discover"
	healthuc "github.com/kailas-cloud/lectern/internal/usecase/health"
	"github.com/kailas-cloud/lectern/internal/usecase/retrieval"
)

// Searcher runs a retrieval with the configured defaults.
type Searcher interface {
	Search(ctx context.Context, query string) (retrieval.Response, error)
}

// Expander rewrites a query for retrieval.
type Expander interface {
	Expand(ctx context.Context, query string) (string, error)
}

// Summarizer streams a summary of search results.
type Summarizer interface {
	Summarize(ctx context.Context, query string, results []video.Result) (*stream.TextStream, error)
}

// RelatedGenerator suggests follow-up queries.
type RelatedGenerator interface {
	Related(ctx context.Context, query string) ([]topic.Related, error)
}

// PathGenerator builds learning paths.
type PathGenerator interface {
	Generate(ctx context.Context, goal string, candidates []path.Candidate) (path.LearningPath, error)
}

// Discoverer runs the combined expand, search and related pipeline.
type Discoverer interface {
	Discover(ctx context.Context, query string) (discoveruc.Result, error)
}

// ChatResponder streams assistant replies.
type ChatResponder interface {
	Reply(ctx context.Context, messages []domain.Message, transcript string) (*stream.TextStream, error)
}

// UsageReporter reports token budgets per provider.
type UsageReporter interface {
	GetReports(ctx context.Context, period domusage.Period) []domusage.Report
}

// HealthChecker aggregates dependency checks.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
