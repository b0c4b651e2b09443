package domain

import (
	"context"
	"errors"
)

// ErrLLMUnavailable signals the model router rejected or could not reach any
// backing model. Callers decide per call site whether this is fatal.
var ErrLLMUnavailable = errors.New("llm unavailable")

// Message is one turn of a chat completion request.
type Message struct {
	Role    string `json:"role"` // "system", "user" or "assistant"
	Content string `json:"content"`
}

// GenerateOptions tune a single completion call.
type GenerateOptions struct {
	Temperature float64
	MaxTokens   int
}

// LLMClient is a chat completion backend behind the model router.
type LLMClient interface {
	Generate(ctx context.Context, messages []Message, opts GenerateOptions) (string, error)
}
