package openai

import (
	"context"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// ClientConfig holds connection settings shared by the embedder and the completer.
type ClientConfig struct {
	APIKey  string
	BaseURL string // empty keeps the OpenAI default
}

// NewClient creates a go-openai client for an OpenAI-compatible API.
func NewClient(cfg ClientConfig) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(clientCfg)
}

// withTimeout bounds ctx by d. A non-positive d leaves ctx unbounded.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func healthCheck(ctx context.Context, client *openai.Client) error {
	if _, err := client.ListModels(ctx); err != nil {
		return parseAPIError(err, "models", errKindHealth)
	}
	return nil
}
