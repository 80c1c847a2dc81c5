package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"go.uber.org/zap"

	"github.com/kailas-cloud/lectern/internal/domain"
	"github.com/kailas-cloud/lectern/internal/domain/stream"
	"github.com/kailas-cloud/lectern/internal/metrics"
)

// Completion modes used as the "mode" metric label.
const (
	modeText       = "text"
	modeStream     = "stream"
	modeStructured = "structured"
)

// Completer is a chat completion provider using the OpenAI-compatible API.
type Completer struct {
	client        *openai.Client
	model         string
	timeout       time.Duration
	streamTimeout time.Duration
	provider      string
	logger        *zap.Logger
}

// CompleterConfig holds the completion provider settings.
type CompleterConfig struct {
	Model         string
	Timeout       time.Duration // non-streaming calls
	StreamTimeout time.Duration // whole stream, first byte to last chunk
	Provider      string
	Logger        *zap.Logger
}

// NewCompleter creates an OpenAI-compatible completion provider.
func NewCompleter(client *openai.Client, cfg *CompleterConfig) *Completer {
	return &Completer{
		client:        client,
		model:         cfg.Model,
		timeout:       cfg.Timeout,
		streamTimeout: cfg.StreamTimeout,
		provider:      cfg.Provider,
		logger:        cfg.Logger,
	}
}

// Complete implements domain.Completer for free-text output.
func (c *Completer) Complete(ctx context.Context, req domain.CompletionRequest) (domain.CompletionResult, error) {
	resp, err := c.create(ctx, c.buildRequest(req), modeText)
	if err != nil {
		return domain.CompletionResult{}, err
	}
	return resultFrom(resp), nil
}

// CompleteStructured implements domain.Completer for schema-constrained output.
// The schema is derived from out's type; the reply is validated against it before decoding.
func (c *Completer) CompleteStructured(
	ctx context.Context, req domain.CompletionRequest, name string, out any,
) (domain.CompletionResult, error) {
	schema, err := jsonschema.GenerateSchemaForType(reflect.Indirect(reflect.ValueOf(out)).Interface())
	if err != nil {
		return domain.CompletionResult{}, fmt.Errorf("generate %s schema: %w", name, err)
	}

	r := c.buildRequest(req)
	r.ResponseFormat = &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
			Name:   name,
			Schema: schema,
			Strict: true,
		},
	}

	resp, err := c.create(ctx, r, modeStructured)
	if err != nil {
		return domain.CompletionResult{}, err
	}

	result := resultFrom(resp)
	if result.Text == "" {
		return result, fmt.Errorf("%s: empty structured output: %w", name, domain.ErrSchemaViolation)
	}
	if err := schema.Unmarshal(result.Text, out); err != nil {
		c.logger.Warn("Structured output failed validation",
			zap.String("schema", name),
			zap.String("model", c.model),
			zap.Error(err),
		)
		return result, fmt.Errorf("%s: %v: %w", name, err, domain.ErrSchemaViolation)
	}
	return result, nil
}

// Stream implements domain.Completer for token streaming.
// Connection and HTTP errors surface here; failures mid-stream terminate the TextStream.
func (c *Completer) Stream(ctx context.Context, req domain.CompletionRequest) (*stream.TextStream, error) {
	r := c.buildRequest(req)
	r.Stream = true
	r.StreamOptions = &openai.StreamOptions{IncludeUsage: true}

	ctx, cancel := withTimeout(ctx, c.streamTimeout)
	start := time.Now()

	upstream, err := c.client.CreateChatCompletionStream(ctx, r)
	if err != nil {
		cancel()
		c.observe(modeStream, start, err)
		return nil, parseAPIError(err, "completion stream", errKindCompletion)
	}

	return stream.New(ctx, func(ctx context.Context, emit stream.EmitFunc) (stream.Usage, error) {
		defer cancel()
		defer upstream.Close()
		// Closing the consumer side aborts the HTTP stream instead of waiting for the next chunk.
		stop := context.AfterFunc(ctx, cancel)
		defer stop()

		var usage stream.Usage
		for {
			resp, err := upstream.Recv()
			if errors.Is(err, io.EOF) {
				c.observe(modeStream, start, nil)
				c.recordTokens(usage.Total())
				return usage, nil
			}
			if err != nil {
				c.observe(modeStream, start, err)
				return usage, parseAPIError(err, "completion stream", errKindCompletion)
			}
			if resp.Usage != nil {
				usage = stream.Usage{
					PromptTokens:     resp.Usage.PromptTokens,
					CompletionTokens: resp.Usage.CompletionTokens,
				}
			}
			if len(resp.Choices) == 0 {
				continue
			}
			if err := emit(resp.Choices[0].Delta.Content); err != nil {
				return usage, err
			}
		}
	}), nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (c *Completer) HealthCheck(ctx context.Context) error {
	return healthCheck(ctx, c.client)
}

func (c *Completer) create(
	ctx context.Context, r openai.ChatCompletionRequest, mode string,
) (openai.ChatCompletionResponse, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, r)
	c.observe(mode, start, err)
	if err != nil {
		return openai.ChatCompletionResponse{}, parseAPIError(err, "completion", errKindCompletion)
	}
	if len(resp.Choices) == 0 {
		metrics.AIErrorsTotal.WithLabelValues(c.provider, c.model, "empty_response").Inc()
		return openai.ChatCompletionResponse{}, fmt.Errorf("empty completion response: %w", domain.ErrCompletionProvider)
	}
	c.recordTokens(resp.Usage.TotalTokens)
	return resp, nil
}

func (c *Completer) buildRequest(req domain.CompletionRequest) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+2)
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}
	if req.Prompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})
	}

	r := openai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  msgs,
		MaxTokens: req.MaxTokens,
	}
	if req.Temperature != nil {
		r.Temperature = *req.Temperature
	}
	return r
}

func (c *Completer) observe(mode string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
		metrics.AIErrorsTotal.WithLabelValues(c.provider, c.model, errorType(err)).Inc()
	}
	metrics.CompletionRequestsTotal.WithLabelValues(c.provider, c.model, mode, status).Inc()
	metrics.CompletionRequestDuration.WithLabelValues(c.provider, c.model, mode).Observe(time.Since(start).Seconds())
}

func (c *Completer) recordTokens(total int) {
	if total > 0 {
		metrics.TokensTotal.WithLabelValues(c.provider, c.model, "completion").Add(float64(total))
	}
}

func resultFrom(resp openai.ChatCompletionResponse) domain.CompletionResult {
	return domain.CompletionResult{
		Text:             resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}
}
