// Package llm defines the completion-service boundary and its providers.
package llm

import "context"

// Message is one entry of the conversation history sent to the provider.
type Message struct {
	Role    string `json:"role"` // "system", "user" or "assistant"
	Content string `json:"content"`
}

// CompletionRequest is a structured prompt plus sampling parameters.
type CompletionRequest struct {
	Model        string
	SystemPrompt string
	Messages     []Message
	Temperature  float64
	MaxTokens    int
}

// CompletionResponse is the provider's plain-text completion plus accounting.
type CompletionResponse struct {
	Content      string
	Model        string
	InputTokens  int
	OutputTokens int
	DurationMS   int64
}

// Provider is a language-model completion service.
type Provider interface {
	Name() string
	DefaultModel() string
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
}
