// Package retrieval turns a query into per-video results from the passage index.
package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lectern/internal/domain"
	"github.com/kailas-cloud/lectern/internal/domain/passage"
	"github.com/kailas-cloud/lectern/internal/domain/stage"
	"github.com/kailas-cloud/lectern/internal/domain/video"
	"github.com/kailas-cloud/lectern/internal/logger"
	"github.com/kailas-cloud/lectern/internal/metrics"
)

// Defaults for a search.
const (
	DefaultTopK     = 50
	DefaultMinScore = 0.35
)

const debugScores = 5

// Options tune a single retrieval.
type Options struct {
	TopK     int
	MinScore float64
}

// Response is the search outcome. Message is set only when nothing passed the score floor.
type Response struct {
	Results []video.Result
	Total   int
	Message string
}

// Service is the retrieval engine: embed, query the index, filter by score, group by video.
type Service struct {
	embed    Embedder
	index    Index
	agg      *video.Aggregator
	defaults Options
}

// New creates a retrieval service. A non-positive TopK falls back to DefaultTopK;
// MinScore is used as given so a floor of 0 disables filtering.
func New(embed Embedder, index Index, agg *video.Aggregator, defaults Options) *Service {
	if defaults.TopK <= 0 {
		defaults.TopK = DefaultTopK
	}
	return &Service{embed: embed, index: index, agg: agg, defaults: defaults}
}

// Defaults returns the configured topK and score floor.
func (s *Service) Defaults() Options {
	return s.defaults
}

// Search runs a retrieval with the configured defaults.
// An empty result set is not an error: Message carries the advisory instead.
func (s *Service) Search(ctx context.Context, query string) (Response, error) {
	results, err := s.Retrieve(ctx, query, s.defaults)
	if err != nil {
		return Response{}, err
	}
	resp := Response{Results: results, Total: len(results)}
	if len(results) == 0 {
		resp.Message = video.NoResultsMessage
	}
	return resp, nil
}

// Retrieve returns per-video results for query. Embedding and index failures
// are reported as ErrRetrievalFailed with the cause kept in the chain.
func (s *Service) Retrieve(ctx context.Context, query string, opts Options) ([]video.Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query is required: %w", domain.ErrInvalidInput)
	}
	if opts.TopK <= 0 {
		opts.TopK = s.defaults.TopK
	}

	start := time.Now()
	results, err := s.retrieve(ctx, query, opts)

	outcome := stage.OutcomeOK
	switch {
	case err != nil:
		outcome = stage.OutcomeError
	case len(results) == 0:
		outcome = stage.OutcomeEmpty
	}
	metrics.ObserveStage(metrics.StageRetrieve, string(outcome), time.Since(start).Seconds())

	return results, err
}

func (s *Service) retrieve(ctx context.Context, query string, opts Options) ([]video.Result, error) {
	log := logger.FromContext(ctx)

	emb, err := s.embed.Embed(ctx, query)
	if err != nil {
		log.Error("Query embedding failed", zap.Error(err))
		return nil, fmt.Errorf("%w: embed query: %w", domain.ErrRetrievalFailed, err)
	}
	domain.UsageFromContext(ctx).AddEmbeddingTokens(emb.TotalTokens)

	raw, err := s.index.Query(ctx, emb.Embedding, opts.TopK)
	if err != nil {
		log.Error("Index query failed", zap.Int("top_k", opts.TopK), zap.Error(err))
		return nil, fmt.Errorf("%w: query index: %w", domain.ErrRetrievalFailed, err)
	}

	matches := decode(raw, log)
	if ce := log.Check(zap.DebugLevel, "Top match scores"); ce != nil {
		ce.Write(zap.Float64s("scores", topScores(matches, debugScores)))
	}

	filtered := video.FilterByScore(matches, opts.MinScore)
	metrics.RetrievalFilteredMatches.Observe(float64(len(filtered)))

	results := s.agg.Aggregate(filtered)
	log.Info("Retrieval completed",
		zap.Int("total_matches", len(raw)),
		zap.Int("filtered_matches", len(filtered)),
		zap.Float64("min_score", opts.MinScore),
		zap.Int("videos", len(results)),
	)
	return results, nil
}

// decode validates index payloads. Matches with unusable metadata are skipped.
func decode(raw []passage.RawMatch, log *zap.Logger) []passage.Match {
	matches := make([]passage.Match, 0, len(raw))
	for _, r := range raw {
		m, err := r.Decode()
		if err != nil {
			log.Warn("Skipping passage with invalid metadata", zap.String("id", r.ID), zap.Error(err))
			continue
		}
		matches = append(matches, m)
	}
	return matches
}

func topScores(matches []passage.Match, n int) []float64 {
	n = min(n, len(matches))
	scores := make([]float64, n)
	for i := range n {
		scores[i] = matches[i].Score
	}
	return scores
}
