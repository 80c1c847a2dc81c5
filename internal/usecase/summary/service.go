// Package summary streams a short digest of search results.
package summary

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lectern/internal/domain"
	"github.com/kailas-cloud/lectern/internal/domain/stage"
	"github.com/kailas-cloud/lectern/internal/domain/stream"
	"github.com/kailas-cloud/lectern/internal/domain/video"
	"github.com/kailas-cloud/lectern/internal/logger"
	"github.com/kailas-cloud/lectern/internal/metrics"
)

// Context limits and sampling defaults.
const (
	DefaultVideos      = 5
	DefaultTimestamps  = 3
	DefaultTextChars   = 100
	DefaultTemperature = 0.7
)

const promptTemplate = `User searched for: %q

Here are relevant video segments from Leon Noel's 100Devs bootcamp:
%s

Provide a brief, helpful summary (under 100 words) highlighting:
- The most relevant videos found
- What topics they cover
- When in the videos to find this information

Be conversational and encouraging.`

// Limits bound the result context sent to the model.
type Limits struct {
	Videos     int
	Timestamps int
	TextChars  int
}

// Service streams summaries.
type Service struct {
	streamer    Streamer
	limits      Limits
	temperature float32
}

// New creates a summarizer. Non-positive limits use the defaults.
func New(s Streamer, limits Limits, temperature *float32) *Service {
	if limits.Videos <= 0 {
		limits.Videos = DefaultVideos
	}
	if limits.Timestamps <= 0 {
		limits.Timestamps = DefaultTimestamps
	}
	if limits.TextChars <= 0 {
		limits.TextChars = DefaultTextChars
	}
	t := float32(DefaultTemperature)
	if temperature != nil {
		t = *temperature
	}
	return &Service{streamer: s, limits: limits, temperature: t}
}

// Summarize starts a summary stream over the first results.
// Failures before the first token are returned; later ones end the stream with an error.
func (s *Service) Summarize(ctx context.Context, query string, results []video.Result) (*stream.TextStream, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query is required: %w", domain.ErrInvalidInput)
	}

	start := time.Now()
	inner, err := s.streamer.Stream(ctx, domain.CompletionRequest{
		Prompt:      fmt.Sprintf(promptTemplate, query, s.Context(results)),
		Temperature: domain.Temperature(s.temperature),
	})
	if err != nil {
		metrics.ObserveStage(metrics.StageSummary, string(stage.OutcomeError), time.Since(start).Seconds())
		logger.FromContext(ctx).Error("Summary stream failed to start", zap.Error(err))
		return nil, fmt.Errorf("start summary: %w", err)
	}

	return stream.New(ctx, func(_ context.Context, emit stream.EmitFunc) (stream.Usage, error) {
		defer inner.Close()
		for {
			chunk, ok := inner.Next()
			if !ok {
				break
			}
			if err := emit(chunk); err != nil {
				return stream.Usage{}, err
			}
		}
		outcome := stage.OutcomeOK
		if err := inner.Err(); err != nil {
			outcome = stage.OutcomeError
			logger.FromContext(ctx).Error("Summary stream ended with error", zap.Error(err))
		}
		metrics.ObserveStage(metrics.StageSummary, string(outcome), time.Since(start).Seconds())
		return inner.Usage(), inner.Err()
	}), nil
}

// Context renders results as prompt lines: `N. "title"` followed by `[m:ss] text` per timestamp.
func (s *Service) Context(results []video.Result) string {
	results = results[:min(len(results), s.limits.Videos)]
	blocks := make([]string, 0, len(results))
	for i, r := range results {
		ts := r.Timestamps[:min(len(r.Timestamps), s.limits.Timestamps)]
		lines := make([]string, 0, len(ts))
		for _, t := range ts {
			lines = append(lines, fmt.Sprintf("[%s] %s", clock(t.Start), video.Truncate(t.Text, s.limits.TextChars)))
		}
		blocks = append(blocks, fmt.Sprintf("%d. %q\n  %s", i+1, r.Title, strings.Join(lines, "\n  ")))
	}
	return strings.Join(blocks, "\n\n")
}

// clock formats seconds as m:ss.
func clock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
