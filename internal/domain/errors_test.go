package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelClasses(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		class error
	}{
		{"embedding", ErrEmbeddingProvider, ErrUpstream},
		{"completion", ErrCompletionProvider, ErrUpstream},
		{"index", ErrIndexUnavailable, ErrUpstream},
		{"budget", ErrBudgetExceeded, ErrUpstream},
		{"invalid input", ErrInvalidInput, ErrValidation},
		{"schema", ErrSchemaViolation, ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("op: %w", tt.err)
			if !errors.Is(wrapped, tt.class) {
				t.Errorf("%v should belong to %v", tt.err, tt.class)
			}
			if !errors.Is(wrapped, tt.err) {
				t.Errorf("%v should match itself through wrapping", tt.err)
			}
		})
	}
	if errors.Is(ErrInvalidInput, ErrUpstream) {
		t.Error("validation error must not be upstream")
	}
}

func TestGenerationError(t *testing.T) {
	cause := fmt.Errorf("call: %w", ErrSchemaViolation)
	err := NewGenerationError(cause)

	if !errors.Is(err, ErrGenerationFailed) {
		t.Error("expected ErrGenerationFailed")
	}
	if !errors.Is(err, ErrSchemaViolation) {
		t.Error("expected cause to remain reachable")
	}
	var ge *GenerationError
	if !errors.As(err, &ge) {
		t.Fatal("expected *GenerationError")
	}
	if ge.Detail != cause.Error() {
		t.Errorf("Detail = %q, want %q", ge.Detail, cause.Error())
	}
}

func TestGenerationError_NilCause(t *testing.T) {
	err := NewGenerationError(nil)
	if !errors.Is(err, ErrGenerationFailed) {
		t.Error("expected ErrGenerationFailed")
	}
}
