package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"deepresearch/internal/logging"
	"deepresearch/internal/research"
	"deepresearch/internal/server/app"
)

const sseHeartbeatInterval = 30 * time.Second

// SSEHandler streams session events over Server-Sent Events.
type SSEHandler struct {
	sessions *app.SessionService
	logger   logging.Logger
}

// NewSSEHandler creates a new SSE handler.
func NewSSEHandler(sessions *app.SessionService) *SSEHandler {
	return &SSEHandler{
		sessions: sessions,
		logger:   logging.NewComponentLogger("SSEHandler"),
	}
}

// HandleStream attaches the caller to a session's live event stream. The
// stream ends when the session reaches a terminal phase, the client
// disconnects, or the session is deleted. Attaching to an already-finished
// session delivers its terminal snapshot and ends immediately.
func (h *SSEHandler) HandleStream(c *gin.Context) {
	sessionID := c.Param("id")

	events, err := h.sessions.AttachStream(c.Request.Context(), sessionID, subject(c))
	if err != nil {
		respondError(c, err)
		return
	}
	defer h.sessions.DetachStream(sessionID, events)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, APIResponse{Success: false, Error: "streaming unsupported"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // Disable nginx buffering

	h.logger.Info("SSE connection established for session: %s", sessionID)

	if err := writeSSEEvent(c.Writer, research.NewConnectedEvent(sessionID)); err != nil {
		h.logger.Error("Failed to send connection event: %v", err)
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(sseHeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case event, open := <-events:
			if !open {
				// Session finished or was deleted; the terminal event (if
				// any) was already delivered.
				h.logger.Info("SSE stream ended for session: %s", sessionID)
				return
			}
			if err := writeSSEEvent(c.Writer, event); err != nil {
				h.logger.Error("Failed to send SSE event: %v", err)
				return
			}
			flusher.Flush()
			if event.Terminal() {
				return
			}

		case <-ticker.C:
			if _, err := fmt.Fprintf(c.Writer, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case <-c.Request.Context().Done():
			h.logger.Info("SSE connection closed for session: %s", sessionID)
			return
		}
	}
}

// writeSSEEvent serializes one event in "event: <name>\ndata: <json>\n\n"
// framing.
func writeSSEEvent(w http.ResponseWriter, event research.StreamEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Name, data)
	return err
}
