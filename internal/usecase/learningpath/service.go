// Package learningpath sequences candidate videos into a curriculum for a learning goal.
package learningpath

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lectern/internal/domain"
	"github.com/kailas-cloud/lectern/internal/domain/path"
	"github.com/kailas-cloud/lectern/internal/domain/stage"
	"github.com/kailas-cloud/lectern/internal/logger"
	"github.com/kailas-cloud/lectern/internal/metrics"
)

// DefaultMaxCandidates caps the videos listed in the prompt.
const DefaultMaxCandidates = 20

const schemaName = "learning_path"

const promptTemplate = `Create a personalized learning path for this goal: %q

Available videos from Leon Noel's 100Devs bootcamp:
%s

Create a structured learning path that:
1. Sequences %d-%d videos in a logical learning order
2. Explains why each video is included (1-2 sentences)
3. Lists %d-%d key topics to focus on in each video
4. Estimates total time needed
5. Is encouraging and practical for a beginner

Return a JSON object with: title, description, estimatedTime, and videos array.`

// Service generates learning paths.
type Service struct {
	completer     StructuredCompleter
	maxCandidates int
	temperature   *float32
}

// New creates a learning-path generator. A nil temperature leaves the provider default.
func New(c StructuredCompleter, maxCandidates int, temperature *float32) *Service {
	if maxCandidates <= 0 {
		maxCandidates = DefaultMaxCandidates
	}
	return &Service{completer: c, maxCandidates: maxCandidates, temperature: temperature}
}

// Generate builds a path for goal from candidates. Without candidates it fails with
// ErrInvalidInput before any external call. Upstream and schema failures, as well as
// a path without videos, are returned as *domain.GenerationError.
// A path outside the requested 5-7 steps is still returned.
func (s *Service) Generate(ctx context.Context, goal string, candidates []path.Candidate) (path.LearningPath, error) {
	if len(candidates) == 0 {
		return path.LearningPath{}, fmt.Errorf("no videos available: %w", domain.ErrInvalidInput)
	}
	log := logger.FromContext(ctx)
	log.Info("Learning path requested",
		zap.String("goal", goal),
		zap.Int("video_count", len(candidates)),
	)

	candidates = candidates[:min(len(candidates), s.maxCandidates)]

	start := time.Now()
	lp, err := s.generate(ctx, goal, candidates)
	_, outcome, err := stage.Apply(stage.Propagate, lp, err, path.LearningPath{})
	metrics.ObserveStage(metrics.StageLearningPath, string(outcome), time.Since(start).Seconds())
	if err != nil {
		log.Error("Learning path generation failed", zap.Error(err))
		return path.LearningPath{}, err
	}

	if short, ok := lp.Check(); !ok {
		log.Warn("Learning path outside requested bounds",
			zap.Int("steps", short.Steps),
			zap.Int("steps_off_topic_bounds", short.StepsOffTopicBounds),
		)
	}
	log.Info("Learning path generated",
		zap.String("title", lp.Title),
		zap.String("estimated_time", lp.EstimatedTime),
		zap.Int("steps", len(lp.Videos)),
	)
	return lp, nil
}

func (s *Service) generate(ctx context.Context, goal string, candidates []path.Candidate) (path.LearningPath, error) {
	prompt := fmt.Sprintf(promptTemplate, goal, path.Context(candidates),
		path.MinSteps, path.MaxSteps, path.MinKeyTopics, path.MaxKeyTopics)

	var lp path.LearningPath
	res, err := s.completer.CompleteStructured(ctx, domain.CompletionRequest{
		Prompt:      prompt,
		Temperature: s.temperature,
	}, schemaName, &lp)
	if err != nil {
		return path.LearningPath{}, domain.NewGenerationError(err)
	}
	if len(lp.Videos) == 0 {
		return path.LearningPath{}, &domain.GenerationError{
			Detail: fmt.Sprintf("response has no videos: %s", res.Text),
			Err:    domain.ErrSchemaViolation,
		}
	}
	return lp, nil
}
