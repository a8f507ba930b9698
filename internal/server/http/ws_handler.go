package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"deepresearch/internal/logging"
	"deepresearch/internal/research"
	"deepresearch/internal/server/app"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// WSHandler streams session events over a websocket, for clients that prefer
// it to SSE. Events are delivered as JSON text frames with the same shape as
// the SSE payloads.
type WSHandler struct {
	sessions *app.SessionService
	upgrader websocket.Upgrader
	logger   logging.Logger
}

// NewWSHandler creates a new websocket handler.
func NewWSHandler(sessions *app.SessionService) *WSHandler {
	return &WSHandler{
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origins are screened by the CORS middleware in front.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logging.NewComponentLogger("WSHandler"),
	}
}

// HandleStream upgrades the connection and forwards session events until the
// session finishes or the client goes away.
func (h *WSHandler) HandleStream(c *gin.Context) {
	sessionID := c.Param("id")

	events, err := h.sessions.AttachStream(c.Request.Context(), sessionID, subject(c))
	if err != nil {
		respondError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.sessions.DetachStream(sessionID, events)
		h.logger.Error("Websocket upgrade failed for session %s: %v", sessionID, err)
		return
	}
	defer func() {
		h.sessions.DetachStream(sessionID, events)
		_ = conn.Close()
	}()

	h.logger.Info("Websocket connection established for session: %s", sessionID)

	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(research.NewConnectedEvent(sessionID)); err != nil {
		h.logger.Warn("Websocket write failed for session %s: %v", sessionID, err)
		return
	}

	// Reader goroutine: the client sends nothing meaningful, but reading is
	// required to notice closes and answer control frames.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case event, open := <-events:
			if !open {
				deadline := time.Now().Add(wsWriteTimeout)
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session finished"), deadline)
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(event); err != nil {
				h.logger.Warn("Websocket write failed for session %s: %v", sessionID, err)
				return
			}

		case <-ticker.C:
			deadline := time.Now().Add(wsWriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}

		case <-done:
			h.logger.Info("Websocket connection closed for session: %s", sessionID)
			return

		case <-c.Request.Context().Done():
			return
		}
	}
}
