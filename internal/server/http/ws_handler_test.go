package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deepresearch/internal/llm"
	"deepresearch/internal/research"
	"deepresearch/internal/search"
)

func TestWebsocketStreamDeliversConnectedAndSnapshot(t *testing.T) {
	llmMock := llm.NewMockClient(
		llm.MockResponse{Text: "questions"},
		llm.MockResponse{Text: "plan"},
		llm.MockResponse{Text: `[{"query": "q1"}]`},
		llm.MockResponse{Text: "learning"},
		llm.MockResponse{Text: "# Final Report"},
	)
	provider := search.NewMockProvider()
	provider.Results["q1"] = []search.Result{{Title: "hit", URL: "https://x.example", Content: "body"}}

	router := newTestRouter(t, llmMock, provider, DefaultRouterConfig())
	server := httptest.NewServer(router)
	defer server.Close()

	created := decodeSession(t, doJSON(t, router, http.MethodPost, "/api/sessions", "alice", CreateSessionRequest{}))
	base := "/api/sessions/" + created.ID

	require.Equal(t, http.StatusOK, doJSON(t, router, http.MethodPost, base+"/ask-questions", "alice", askQuestionsRequest{Topic: "topic"}).Code)
	require.Equal(t, http.StatusOK, doJSON(t, router, http.MethodPost, base+"/feedback", "alice", submitFeedbackRequest{Feedback: "feedback"}).Code)
	require.Equal(t, http.StatusOK, doJSON(t, router, http.MethodPost, base+"/report-plan", "alice", nil).Code)
	require.Equal(t, http.StatusOK, doJSON(t, router, http.MethodPost, base+"/execute", "alice", nil).Code)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + base + "/stream?access_token=alice"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var first research.StreamEvent
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, research.EventConnected, first.Name)
	assert.Equal(t, created.ID, first.SessionID)

	var snapshot research.StreamEvent
	require.NoError(t, conn.ReadJSON(&snapshot))
	assert.Equal(t, research.EventFinalReport, snapshot.Name)
	assert.Equal(t, "# Final Report", snapshot.Data["report"])

	// The stream ends with a normal close after the terminal snapshot.
	var next research.StreamEvent
	err = conn.ReadJSON(&next)
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}
