package domain

import (
	"context"

	"github.com/kailas-cloud/lectern/internal/domain/stream"
)

// Role is the author of a chat message.
type Role string

// Chat roles understood by the completion provider.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message is a single chat turn.
type Message struct {
	Role    Role
	Content string
}

// CompletionRequest is a provider-neutral completion call.
// Prompt, when set, is sent as a trailing user message after Messages.
type CompletionRequest struct {
	System      string
	Messages    []Message
	Prompt      string
	Temperature *float32
	MaxTokens   int
}

// CompletionResult is the text output of a non-streaming completion.
type CompletionResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// Completer talks to a language model in free-text, streaming, and schema-constrained modes.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error)

	// Stream starts a token stream. Errors before the first token are returned directly;
	// later failures terminate the stream with an error.
	Stream(ctx context.Context, req CompletionRequest) (*stream.TextStream, error)

	// CompleteStructured asks for an object conforming to the JSON schema of out's type
	// (name identifies the schema) and decodes the validated object into out.
	// Non-conforming output fails with ErrSchemaViolation.
	CompleteStructured(ctx context.Context, req CompletionRequest, name string, out any) (CompletionResult, error)
}

// Temperature returns a pointer to t for CompletionRequest.Temperature.
func Temperature(t float32) *float32 { return &t }
