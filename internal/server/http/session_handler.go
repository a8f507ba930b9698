package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"deepresearch/internal/logging"
	"deepresearch/internal/research"
	"deepresearch/internal/server/app"
)

// SessionHandler serves session CRUD.
type SessionHandler struct {
	sessions *app.SessionService
	logger   logging.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(sessions *app.SessionService) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		logger:   logging.NewComponentLogger("SessionHandler"),
	}
}

// CreateSessionRequest carries the session settings snapshot. TTLSeconds of
// zero uses the server default.
type CreateSessionRequest struct {
	Settings   research.Settings `json:"settings"`
	TTLSeconds int64             `json:"ttl_seconds,omitempty"`
}

// HandleCreateSession creates a session owned by the caller.
func (h *SessionHandler) HandleCreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIResponse{Success: false, Error: "invalid request body: " + err.Error()})
		return
	}

	created, err := h.sessions.CreateSession(c.Request.Context(), req.Settings, time.Duration(req.TTLSeconds)*time.Second, subject(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, created)
}

// HandleGetSession returns one session.
func (h *SessionHandler) HandleGetSession(c *gin.Context) {
	record, err := h.sessions.GetSession(c.Request.Context(), c.Param("id"), subject(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, record)
}

// UpdateSessionRequest replaces the session's settings snapshot.
type UpdateSessionRequest struct {
	Settings research.Settings `json:"settings"`
}

// HandleUpdateSession updates a session's settings. Workflow state is not
// editable through this endpoint.
func (h *SessionHandler) HandleUpdateSession(c *gin.Context) {
	var req UpdateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIResponse{Success: false, Error: "invalid request body: " + err.Error()})
		return
	}

	updated, err := h.sessions.UpdateSession(c.Request.Context(), c.Param("id"), subject(c), req.Settings)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, updated)
}

// HandleListSessions returns the caller's sessions.
func (h *SessionHandler) HandleListSessions(c *gin.Context) {
	records, err := h.sessions.ListSessions(c.Request.Context(), subject(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if records == nil {
		records = []*research.Session{}
	}
	respondOK(c, records)
}

// HandleDeleteSession removes a session. Deleting an unknown session still
// returns success, reporting removed=false.
func (h *SessionHandler) HandleDeleteSession(c *gin.Context) {
	removed, err := h.sessions.DeleteSession(c.Request.Context(), c.Param("id"), subject(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"removed": removed})
}
