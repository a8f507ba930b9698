package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainerrors "deepresearch/internal/errors"
	"deepresearch/internal/research"
	"deepresearch/internal/server/app"
	"deepresearch/internal/session"
)

// APIResponse is the envelope for every JSON endpoint.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

func respondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, APIResponse{Success: true, Data: data})
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusForError(err), APIResponse{Success: false, Error: err.Error()})
}

// statusForError maps domain errors onto HTTP statuses. Phase precondition
// failures are conflicts: the session exists but is not in a state that
// admits the request.
func statusForError(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, app.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, app.ErrEmptyTopic),
		errors.Is(err, app.ErrEmptyFeedback),
		errors.Is(err, research.ErrInvalidRefineTarget):
		return http.StatusBadRequest
	case errors.Is(err, research.ErrTerminalSession),
		errors.Is(err, research.ErrWrongPhase),
		errors.Is(err, research.ErrRefineDuringExecute):
		return http.StatusConflict
	}

	var permanent *domainerrors.PermanentError
	if errors.As(err, &permanent) && permanent.StatusCode >= 400 {
		return http.StatusBadGateway
	}
	if domainerrors.IsTransient(err) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
