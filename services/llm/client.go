package llm

import (
	"context"

	"github.com/NekoyaJolly/AI-Chatbot/services/chatbot/datatypes"
)

// GenerationParams holds optional sampling parameters for a generation
// call. Nil pointers mean "use the backend default".
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// ChatResult is the outcome of a single chat completion.
//
// Usage is nil when the backend does not report token counts.
type ChatResult struct {
	Text  string
	Usage *datatypes.TokenUsage
}

// LLMClient defines the standard interface for any LLM backend.
//
// Chat performs exactly one completion attempt over the given message
// sequence. Implementations must not retry internally; the pipeline
// bounds user-facing latency by making a single attempt and falling
// back on failure.
type LLMClient interface {
	Chat(ctx context.Context, messages []datatypes.Message, params GenerationParams) (*ChatResult, error)
}
