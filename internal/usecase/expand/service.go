// Package expand broadens vague search queries before retrieval.
package expand

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lectern/internal/domain"
	"github.com/kailas-cloud/lectern/internal/domain/stage"
	"github.com/kailas-cloud/lectern/internal/logger"
	"github.com/kailas-cloud/lectern/internal/metrics"
)

// DefaultTemperature keeps expansions close to the query.
const DefaultTemperature = 0.3

const promptTemplate = `You are helping search through coding bootcamp videos. The user searched for: %q

If this query is vague or could be improved, expand it to include related terms and concepts that would help find relevant videos.
If the query is already specific and clear, return it as-is.

Examples:
- "jobs" -> "how to get a software engineering job, job search strategies, interview preparation, resume tips, networking for employment"
- "CSS" -> "CSS styling, CSS flexbox, CSS grid, CSS layouts, CSS properties"
- "how to network effectively" -> "how to network effectively" (already specific)

Return ONLY the expanded query text, nothing else.`

// Service expands queries. It never fails for a non-empty query.
type Service struct {
	completer   Completer
	cache       Cache
	temperature float32
}

// New creates an expander. cache may be nil.
func New(c Completer, cache Cache, temperature *float32) *Service {
	t := float32(DefaultTemperature)
	if temperature != nil {
		t = *temperature
	}
	return &Service{completer: c, cache: cache, temperature: t}
}

// Expand returns a richer query, or the original query if expansion fails or comes back empty.
// Empty input is rejected with ErrInvalidInput.
func (s *Service) Expand(ctx context.Context, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("query is required: %w", domain.ErrInvalidInput)
	}

	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, query); ok {
			metrics.ObserveStage(metrics.StageExpand, string(stage.OutcomeOK), 0)
			return cached, nil
		}
	}

	start := time.Now()
	expanded, err := s.complete(ctx, query)
	expanded, outcome, _ := stage.Apply(stage.SwallowWithDefault, expanded, err, query)
	metrics.ObserveStage(metrics.StageExpand, string(outcome), time.Since(start).Seconds())

	if err != nil {
		logger.FromContext(ctx).Warn("Query expansion failed, using original query",
			zap.String("query", query),
			zap.Error(err),
		)
		return expanded, nil
	}

	if s.cache != nil {
		s.cache.Put(ctx, query, expanded)
	}
	return expanded, nil
}

func (s *Service) complete(ctx context.Context, query string) (string, error) {
	res, err := s.completer.Complete(ctx, domain.CompletionRequest{
		Prompt:      fmt.Sprintf(promptTemplate, query),
		Temperature: domain.Temperature(s.temperature),
	})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(res.Text)
	if text == "" {
		return "", fmt.Errorf("empty expansion: %w", domain.ErrCompletionProvider)
	}
	return text, nil
}
