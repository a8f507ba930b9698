package llm

import "context"

// Client is the text-generation collaborator contract. One call, one
// completion; retries and fallbacks are the caller's concern.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// CompletionRequest carries one prompt pair to the provider.
type CompletionRequest struct {
	System      string
	Prompt      string
	Model       string
	Temperature float64
	MaxTokens   int
}

// CompletionResponse is the provider's completion text plus token accounting
// when the provider reports it.
type CompletionResponse struct {
	Text  string
	Usage TokenUsage
}

// TokenUsage mirrors the provider-reported token counts.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Config configures an HTTP-backed client.
type Config struct {
	APIKey  string
	BaseURL string
	// Timeout in seconds for a single completion call; 0 uses the default.
	Timeout int
	Headers map[string]string
}
