package openai

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/lectern/internal/domain"
	"github.com/kailas-cloud/lectern/internal/metrics"
)

// Embedder vectorizes search queries through an OpenAI-compatible /embeddings endpoint.
type Embedder struct {
	client     *openai.Client
	model      string
	dimensions int
	timeout    time.Duration
	provider   string
	logger     *zap.Logger
}

// EmbedderConfig holds the embedding provider settings.
// Dimensions must match the passage index; 0 accepts whatever the model returns.
type EmbedderConfig struct {
	Model      string
	Dimensions int
	Timeout    time.Duration
	Provider   string
	Logger     *zap.Logger
}

// NewEmbedder creates an OpenAI-compatible embedding provider.
func NewEmbedder(client *openai.Client, cfg *EmbedderConfig) *Embedder {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Embedder{
		client:     client,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		timeout:    cfg.Timeout,
		provider:   cfg.Provider,
		logger:     logger,
	}
}

// Embed requests one float vector for text.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	req := openai.EmbeddingRequest{
		Input:          []string{text},
		Model:          openai.EmbeddingModel(e.model),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		Dimensions:     e.dimensions,
	}

	ctx, cancel := withTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		e.observe(start, errorType(err))
		return domain.EmbeddingResult{}, parseAPIError(err, "embedding", errKindEmbedding)
	}

	vec, err := e.vector(resp)
	if err != nil {
		e.observe(start, "bad_response")
		return domain.EmbeddingResult{}, err
	}
	e.observe(start, "")

	if resp.Usage.TotalTokens > 0 {
		metrics.TokensTotal.WithLabelValues(e.provider, e.model, "embedding").Add(float64(resp.Usage.TotalTokens))
	}
	return domain.EmbeddingResult{
		Embedding:    vec,
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}, nil
}

// vector extracts the single embedding and checks it against the index dimensions.
func (e *Embedder) vector(resp openai.EmbeddingResponse) ([]float32, error) {
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding response: %w", domain.ErrEmbeddingProvider)
	}
	vec := resp.Data[0].Embedding
	if e.dimensions > 0 && len(vec) != e.dimensions {
		e.logger.Error("Embedding dimensions do not match the index",
			zap.String("provider", e.provider),
			zap.String("model", e.model),
			zap.Int("want", e.dimensions),
			zap.Int("got", len(vec)),
		)
		return nil, fmt.Errorf("model %s returned %d dimensions, index expects %d: %w",
			e.model, len(vec), e.dimensions, domain.ErrEmbeddingProvider)
	}
	return vec, nil
}

// observe records the request outcome. An empty errType marks success.
func (e *Embedder) observe(start time.Time, errType string) {
	status := "success"
	if errType != "" {
		status = "error"
		metrics.AIErrorsTotal.WithLabelValues(e.provider, e.model, errType).Inc()
	}
	metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, e.model, status).Inc()
	if errType == "" {
		metrics.EmbeddingRequestDuration.WithLabelValues(e.provider, e.model).Observe(time.Since(start).Seconds())
	}
}

// HealthCheck verifies API availability via ListModels, which bills no tokens.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	return healthCheck(ctx, e.client)
}
