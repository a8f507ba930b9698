package search

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

// tavilyProvider calls the Tavily search API.
type tavilyProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     logging.Logger
}

// NewTavilyProvider constructs a Provider backed by the Tavily API.
func NewTavilyProvider(config Config) Provider {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.tavily.com"
	}
	timeout := 30 * time.Second
	if config.Timeout > 0 {
		timeout = time.Duration(config.Timeout) * time.Second
	}
	return &tavilyProvider{
		apiKey:     config.APIKey,
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.NewComponentLogger("TavilySearch"),
	}
}

type tavilyRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results,omitempty"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

func (p *tavilyProvider) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty search query")
	}
	if maxResults <= 0 {
		maxResults = 5
	}

	body, err := json.Marshal(tavilyRequest{Query: query, MaxResults: maxResults})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	start := time.Now()
	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, dre.NewTransient(fmt.Errorf("search request failed: %w", err), 0)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, dre.NewTransient(fmt.Errorf("read search response: %w", err), resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		p.logger.Warn("Search call failed: status=%d query=%q elapsed=%s", resp.StatusCode, query, time.Since(start))
		return nil, dre.FromHTTPStatus(fmt.Errorf("search API status %d", resp.StatusCode), resp.StatusCode)
	}

	var parsed tavilyResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, dre.NewPermanent(fmt.Errorf("decode search response: %w", err), resp.StatusCode)
	}

	results := make([]Result, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		if r.URL == "" {
			continue
		}
		results = append(results, Result{Title: r.Title, URL: r.URL, Content: r.Content})
	}
	p.logger.Debug("Search ok: query=%q results=%d elapsed=%s", query, len(results), time.Since(start))
	return results, nil
}
