package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type recordingEmbedder struct {
	texts []string
	err   error
}

func (r *recordingEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	r.texts = append(r.texts, text)
	if r.err != nil {
		return EmbeddingResult{}, r.err
	}
	return EmbeddingResult{Embedding: []float32{1, 0}, PromptTokens: 3, TotalTokens: 3}, nil
}

func TestWithQueryInstruction(t *testing.T) {
	tests := []struct {
		name        string
		instruction string
		query       string
		want        string
	}{
		{"prefixed", "query: ", "rust ownership", "query: rust ownership"},
		{"trimmed before prefixing", "query: ", "  rust ownership\n", "query: rust ownership"},
		{"already prefixed", "query: ", "query: rust ownership", "query: rust ownership"},
		{"no instruction", "", " rust ", " rust "},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			inner := &recordingEmbedder{}
			res, err := WithQueryInstruction(inner, tc.instruction).Embed(context.Background(), tc.query)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(inner.texts) != 1 || inner.texts[0] != tc.want {
				t.Errorf("embedded %q, want %q", inner.texts, tc.want)
			}
			if res.TotalTokens != 3 {
				t.Errorf("tokens = %d, want 3", res.TotalTokens)
			}
		})
	}
}

func TestWithQueryInstruction_EmptyReturnsInner(t *testing.T) {
	inner := &recordingEmbedder{}
	if got := WithQueryInstruction(inner, ""); got != Embedder(inner) {
		t.Errorf("expected inner embedder, got %T", got)
	}
}

func TestWithQueryInstruction_ErrorKeepsClassification(t *testing.T) {
	inner := &recordingEmbedder{err: fmt.Errorf("openai: %w", ErrEmbeddingProvider)}
	_, err := WithQueryInstruction(inner, "query: ").Embed(context.Background(), "x")
	if !errors.Is(err, ErrEmbeddingProvider) || !errors.Is(err, ErrUpstream) {
		t.Errorf("err = %v, want embedding provider upstream error", err)
	}
}

type probingEmbedder struct {
	recordingEmbedder
	probeErr error
}

func (p *probingEmbedder) HealthCheck(context.Context) error { return p.probeErr }

func TestWithQueryInstruction_HealthCheckForwards(t *testing.T) {
	down := errors.New("down")
	emb := WithQueryInstruction(&probingEmbedder{probeErr: down}, "query: ")
	hc, ok := emb.(HealthChecker)
	if !ok {
		t.Fatal("decorator should expose HealthCheck")
	}
	if err := hc.HealthCheck(context.Background()); !errors.Is(err, down) {
		t.Errorf("HealthCheck = %v, want %v", err, down)
	}
}
