// Package related suggests follow-up search queries.
package related

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lectern/internal/domain"
	"github.com/kailas-cloud/lectern/internal/domain/stage"
	"github.com/kailas-cloud/lectern/internal/domain/topic"
	"github.com/kailas-cloud/lectern/internal/logger"
	"github.com/kailas-cloud/lectern/internal/metrics"
)

// DefaultTemperature favours varied suggestions.
const DefaultTemperature = 0.7

const schemaName = "related_topics"

const promptTemplate = `Given this search query about coding/web development: %q

Generate 4-5 related search queries that someone learning from Leon Noel's 100Devs bootcamp might also be interested in.

Each suggestion should:
- Be specific and actionable
- Build on or complement the original query
- Be relevant to web development/coding careers
- Have a brief reason why it's related

Example:
Query: "JavaScript arrays"
Related:
- "JavaScript array methods" - "Learn map, filter, reduce"
- "JavaScript objects" - "Often used with arrays"
- "JavaScript loops" - "Common way to iterate arrays"`

// Service generates related topics. Upstream failures yield an empty list.
type Service struct {
	completer   StructuredCompleter
	temperature float32
}

// New creates a related-topics generator.
func New(c StructuredCompleter, temperature *float32) *Service {
	t := float32(DefaultTemperature)
	if temperature != nil {
		t = *temperature
	}
	return &Service{completer: c, temperature: t}
}

// Related returns follow-up queries for query. Only empty input is an error.
func (s *Service) Related(ctx context.Context, query string) ([]topic.Related, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query is required: %w", domain.ErrInvalidInput)
	}

	start := time.Now()
	var list topic.List
	_, err := s.completer.CompleteStructured(ctx, domain.CompletionRequest{
		Prompt:      fmt.Sprintf(promptTemplate, query),
		Temperature: domain.Temperature(s.temperature),
	}, schemaName, &list)

	topics, outcome, _ := stage.Apply(stage.SwallowWithDefault, list.Clean(), err, []topic.Related{})
	if outcome == stage.OutcomeOK && len(topics) == 0 {
		outcome = stage.OutcomeEmpty
	}
	metrics.ObserveStage(metrics.StageRelated, string(outcome), time.Since(start).Seconds())

	if err != nil {
		logger.FromContext(ctx).Warn("Related topics failed, returning none",
			zap.String("query", query),
			zap.Error(err),
		)
	}
	return topics, nil
}
