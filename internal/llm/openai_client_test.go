package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dre "deepresearch/internal/errors"
)

func TestOpenAIClientComplete(t *testing.T) {
	var gotAuth string
	var gotBody chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "three questions"}},
			},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
	defer server.Close()

	client := NewOpenAIClient(Config{APIKey: "test-key", BaseURL: server.URL})
	resp, err := client.Complete(context.Background(), CompletionRequest{
		System: "you are a researcher",
		Prompt: "ask clarifying questions",
		Model:  "gpt-4o",
	})
	require.NoError(t, err)

	assert.Equal(t, "three questions", resp.Text)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "gpt-4o", gotBody.Model)
	require.Len(t, gotBody.Messages, 2)
	assert.Equal(t, "system", gotBody.Messages[0].Role)
}

func TestOpenAIClientClassifiesStatuses(t *testing.T) {
	cases := []struct {
		status        int
		wantTransient bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
	}

	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		client := NewOpenAIClient(Config{BaseURL: server.URL})
		_, err := client.Complete(context.Background(), CompletionRequest{Prompt: "x", Model: "m"})
		server.Close()

		require.Error(t, err)
		assert.Equal(t, tc.wantTransient, dre.IsTransient(err), "status %d", tc.status)
	}
}

func TestMockClientScriptsInOrder(t *testing.T) {
	mock := NewMockClient(
		MockResponse{Text: "first"},
		MockResponse{Text: "second"},
	)

	resp, err := mock.Complete(context.Background(), CompletionRequest{Prompt: "a"})
	require.NoError(t, err)
	assert.Equal(t, "first", resp.Text)

	resp, err = mock.Complete(context.Background(), CompletionRequest{Prompt: "b"})
	require.NoError(t, err)
	assert.Equal(t, "second", resp.Text)

	// Repeats the last scripted response.
	resp, err = mock.Complete(context.Background(), CompletionRequest{Prompt: "c"})
	require.NoError(t, err)
	assert.Equal(t, "second", resp.Text)
	assert.Equal(t, 3, mock.CallCount())
}
