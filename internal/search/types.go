package search

import "context"

// Provider is the web-search collaborator contract. A call may fail; the
// orchestrator records per-task failures and never lets them cross the task
// boundary.
type Provider interface {
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}

// Result is one search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Config configures an HTTP-backed provider.
type Config struct {
	APIKey  string
	BaseURL string
	// Timeout in seconds for a single search call; 0 uses the default.
	Timeout int
}
