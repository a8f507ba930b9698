package search

import (
	"context"
	"sync"
)

// MockProvider maps queries to scripted outcomes. Unknown queries return an
// empty result set so tests only script what they assert on.
type MockProvider struct {
	mu      sync.Mutex
	Results map[string][]Result
	Errors  map[string]error
	Queries []string
}

// NewMockProvider constructs an empty mock.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Results: make(map[string][]Result),
		Errors:  make(map[string]error),
	}
}

func (m *MockProvider) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Queries = append(m.Queries, query)
	if err, ok := m.Errors[query]; ok {
		return nil, err
	}
	results := m.Results[query]
	if maxResults > 0 && len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}

// QueryCount reports how many searches were performed.
func (m *MockProvider) QueryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Queries)
}
