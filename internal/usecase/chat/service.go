// Package chat answers questions about the lectures, optionally grounded in transcript excerpts.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lectern/internal/domain"
	"github.com/kailas-cloud/lectern/internal/domain/stage"
	"github.com/kailas-cloud/lectern/internal/domain/stream"
	"github.com/kailas-cloud/lectern/internal/logger"
	"github.com/kailas-cloud/lectern/internal/metrics"
)

// Limits and sampling defaults.
const (
	DefaultTemperature = 0.7
	MaxMessages        = 50
)

const (
	systemIntro = "You are a helpful assistant that answers questions about Leon Noel's 100Devs coding bootcamp videos."

	groundedTemplate = `Here is context from the video transcripts:
%s

Use this context to answer questions accurately. Reference specific videos and timestamps when relevant.`

	ungrounded = "Help users find information about Leon Noel's 100Devs videos."

	systemOutro = "Be conversational, helpful, and encouraging. If you don't know something, suggest what the user should search for."
)

// Service streams chat replies.
type Service struct {
	streamer    Streamer
	temperature float32
}

// New creates a chat service.
func New(s Streamer, temperature *float32) *Service {
	t := float32(DefaultTemperature)
	if temperature != nil {
		t = *temperature
	}
	return &Service{streamer: s, temperature: t}
}

// Reply streams the assistant's answer to the conversation.
// The conversation must end with a user message and may not carry system messages.
func (s *Service) Reply(ctx context.Context, messages []domain.Message, transcript string) (*stream.TextStream, error) {
	if err := validate(messages); err != nil {
		return nil, err
	}

	start := time.Now()
	inner, err := s.streamer.Stream(ctx, domain.CompletionRequest{
		System:      SystemPrompt(transcript),
		Messages:    messages,
		Temperature: domain.Temperature(s.temperature),
	})
	if err != nil {
		metrics.ObserveStage(metrics.StageChat, string(stage.OutcomeError), time.Since(start).Seconds())
		logger.FromContext(ctx).Error("Chat stream failed to start", zap.Error(err))
		return nil, fmt.Errorf("start chat: %w", err)
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
		if inner.Err() != nil {
			outcome = stage.OutcomeError
		}
		metrics.ObserveStage(metrics.StageChat, string(outcome), time.Since(start).Seconds())
		return inner.Usage(), inner.Err()
	}), nil
}

// SystemPrompt builds the system message, grounded in transcript when it is non-empty.
func SystemPrompt(transcript string) string {
	middle := ungrounded
	if t := strings.TrimSpace(transcript); t != "" {
		middle = fmt.Sprintf(groundedTemplate, t)
	}
	return systemIntro + "\n\n" + middle + "\n\n" + systemOutro
}

func validate(messages []domain.Message) error {
	if len(messages) == 0 {
		return fmt.Errorf("messages are required: %w", domain.ErrInvalidInput)
	}
	if len(messages) > MaxMessages {
		return fmt.Errorf("at most %d messages allowed: %w", MaxMessages, domain.ErrInvalidInput)
	}
	for i, m := range messages {
		if !m.Role.IsValid() || m.Role == domain.RoleSystem {
			return fmt.Errorf("message %d: unsupported role %q: %w", i, m.Role, domain.ErrInvalidInput)
		}
		if strings.TrimSpace(m.Content) == "" {
			return fmt.Errorf("message %d: empty content: %w", i, domain.ErrInvalidInput)
		}
	}
	if messages[len(messages)-1].Role != domain.RoleUser {
		return fmt.Errorf("last message must be from the user: %w", domain.ErrInvalidInput)
	}
	return nil
}
