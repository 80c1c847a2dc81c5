package domain

import (
	"errors"
	"fmt"
)

// Error classes. Every sentinel below unwraps to exactly one of them.
var (
	// ErrUpstream signals a failed call to an external service (network, timeout, quota).
	ErrUpstream = errors.New("upstream service error")
	// ErrValidation signals missing input or output that does not conform to its schema.
	ErrValidation = errors.New("validation error")
)

var (
	// ErrEmbeddingProvider signals an embedding provider failure.
	ErrEmbeddingProvider = newClassified("embedding provider error", ErrUpstream)
	// ErrCompletionProvider signals a completion provider failure.
	ErrCompletionProvider = newClassified("completion provider error", ErrUpstream)
	// ErrIndexUnavailable signals a vector index failure.
	ErrIndexUnavailable = newClassified("vector index error", ErrUpstream)
	// ErrBudgetExceeded signals an exhausted token budget.
	ErrBudgetExceeded = newClassified("token budget exceeded", ErrUpstream)

	// ErrInvalidInput signals a rejected request before any external call.
	ErrInvalidInput = newClassified("invalid input", ErrValidation)
	// ErrSchemaViolation signals structured model output that failed schema conformance.
	ErrSchemaViolation = newClassified("schema violation", ErrValidation)
)

var (
	// ErrRetrievalFailed wraps any embedding or index failure inside the retrieval engine.
	ErrRetrievalFailed = errors.New("retrieval failed")
	// ErrGenerationFailed signals a structured generation stage that produced no usable output.
	ErrGenerationFailed = errors.New("generation failed")
)

type classifiedError struct {
	msg   string
	class error
}

func newClassified(msg string, class error) error {
	return &classifiedError{msg: msg, class: class}
}

func (e *classifiedError) Error() string { return e.msg }
func (e *classifiedError) Unwrap() error { return e.class }

// GenerationError wraps ErrGenerationFailed with the raw upstream detail for diagnostics.
type GenerationError struct {
	Detail string
	Err    error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrGenerationFailed.Error(), e.Detail)
}

// Unwrap exposes both the generation sentinel and the underlying cause.
func (e *GenerationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrGenerationFailed}
	}
	return []error{ErrGenerationFailed, e.Err}
}

// NewGenerationError creates a generation failure carrying the cause's message as detail.
func NewGenerationError(cause error) error {
	detail := "unknown error"
	if cause != nil {
		detail = cause.Error()
	}
	return &GenerationError{Detail: detail, Err: cause}
}
