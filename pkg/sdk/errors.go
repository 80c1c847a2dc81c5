package lectern

import "github.com/kailas-cloud/lectern/internal/domain"

// Sentinel errors re-exported for errors.Is checks.
var (
	ErrUpstream          = domain.ErrUpstream
	ErrValidation        = domain.ErrValidation
	ErrEmbeddingProvider = domain.ErrEmbeddingProvider
	ErrIndexUnavailable  = domain.ErrIndexUnavailable
	ErrInvalidInput      = domain.ErrInvalidInput
	ErrRetrievalFailed   = domain.ErrRetrievalFailed
)
