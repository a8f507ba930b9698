package llm

import (
	"context"
	"sync"
)

// MockClient returns scripted responses in order, then repeats the last one.
// An entry with a non-nil error simulates a collaborator failure.
type MockClient struct {
	mu        sync.Mutex
	Responses []MockResponse
	Calls     []CompletionRequest
	next      int
}

// MockResponse is one scripted completion outcome.
type MockResponse struct {
	Text string
	Err  error
}

// NewMockClient scripts the given outcomes.
func NewMockClient(responses ...MockResponse) *MockClient {
	return &MockClient{Responses: responses}
}

func (m *MockClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, req)
	if len(m.Responses) == 0 {
		return &CompletionResponse{Text: "mock completion"}, nil
	}
	idx := m.next
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	} else {
		m.next++
	}
	scripted := m.Responses[idx]
	if scripted.Err != nil {
		return nil, scripted.Err
	}
	return &CompletionResponse{Text: scripted.Text}, nil
}

// CallCount reports how many completions were requested.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
