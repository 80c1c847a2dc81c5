package summary

import (
	"context"

	"github.com/kailas-cloud/lectern/internal/domain"
	"github.com/kailas-cloud/lectern/internal/domain/stream"
)

// Streamer produces streamed completions.
type Streamer interface {
	Stream(ctx context.Context, req domain.CompletionRequest) (*stream.TextStream, error)
}
