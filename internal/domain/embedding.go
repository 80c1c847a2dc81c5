package domain

import (
	"context"
	"fmt"
	"strings"
)

// Embedder turns a search query into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// HealthChecker is implemented by providers that can probe their upstream.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult is a query vector plus the tokens the provider billed for it.
// Cache hits report zero tokens.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// WithQueryInstruction prefixes every query with the model's retrieval
// instruction (e.g. "query: " for E5 models). Passages in the index were
// embedded without it. An empty instruction returns inner unchanged.
func WithQueryInstruction(inner Embedder, instruction string) Embedder {
	if instruction == "" {
		return inner
	}
	return &queryInstruction{inner: inner, instruction: instruction}
}

type queryInstruction struct {
	inner       Embedder
	instruction string
}

func (q *queryInstruction) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, q.instruction) {
		text = q.instruction + text
	}
	res, err := q.inner.Embed(ctx, text)
	if err != nil {
		return EmbeddingResult{}, fmt.Errorf("embed with query instruction: %w", err)
	}
	return res, nil
}

// HealthCheck forwards to inner when it supports probing.
func (q *queryInstruction) HealthCheck(ctx context.Context) error {
	if hc, ok := q.inner.(HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // pass-through
	}
	return nil
}
