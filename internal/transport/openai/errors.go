package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kailas-cloud/lectern/internal/domain"
)

type errKind int

const (
	errKindEmbedding errKind = iota
	errKindCompletion
	errKindHealth
)

func (k errKind) sentinel() error {
	if k == errKindEmbedding {
		return domain.ErrEmbeddingProvider
	}
	return domain.ErrCompletionProvider
}

// parseAPIError extracts a human-readable error from the API response.
// Every error is wrapped with the provider sentinel so the HTTP layer maps it as upstream.
func parseAPIError(err error, op string, kind errKind) error {
	wrap := kind.sentinel()

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return fmt.Errorf("%s API error %d: %s: %w", op, reqErr.HTTPStatusCode, detail, wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s API error %d: %s: %w", op, apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s request: %w: %w", op, wrap, err)
	}

	return fmt.Errorf("%s request failed: %v: %w", op, err, wrap)
}

// errorType labels provider errors for metrics.
func errorType(err error) string {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Sprintf("http_%d", reqErr.HTTPStatusCode)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("http_%d", apiErr.HTTPStatusCode)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "api_error"
}

// extractDetail extracts the "detail" field from a JSON error body (Nebius-style providers).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
