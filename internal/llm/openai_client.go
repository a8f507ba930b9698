package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	dre "deepresearch/internal/errors"
	"deepresearch/internal/logging"
)

// openaiClient speaks the OpenAI-compatible chat completions API.
type openaiClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	headers    map[string]string
	logger     logging.Logger
}

// NewOpenAIClient constructs a Client for any OpenAI-compatible endpoint.
func NewOpenAIClient(config Config) Client {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	timeout := 120 * time.Second
	if config.Timeout > 0 {
		timeout = time.Duration(config.Timeout) * time.Second
	}
	return &openaiClient{
		apiKey:     config.APIKey,
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		headers:    config.Headers,
		logger:     logging.NewComponentLogger("OpenAIClient"),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage TokenUsage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *openaiClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body, err := json.Marshal(chatRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, dre.NewTransient(fmt.Errorf("completion request failed: %w", err), 0)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, dre.NewTransient(fmt.Errorf("read completion response: %w", err), resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("Completion call failed: status=%d model=%s elapsed=%s", resp.StatusCode, req.Model, time.Since(start))
		return nil, dre.FromHTTPStatus(fmt.Errorf("completion API status %d: %s", resp.StatusCode, truncate(string(data), 512)), resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, dre.NewPermanent(fmt.Errorf("decode completion response: %w", err), resp.StatusCode)
	}
	if parsed.Error != nil {
		return nil, dre.NewPermanent(fmt.Errorf("completion API error: %s", parsed.Error.Message), resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return nil, dre.NewPermanent(fmt.Errorf("completion API returned no choices"), resp.StatusCode)
	}

	c.logger.Debug("Completion ok: model=%s tokens=%d elapsed=%s", req.Model, parsed.Usage.TotalTokens, time.Since(start))
	return &CompletionResponse{
		Text:  parsed.Choices[0].Message.Content,
		Usage: parsed.Usage,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
