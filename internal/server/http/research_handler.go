package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"deepresearch/internal/logging"
	"deepresearch/internal/research"
	"deepresearch/internal/server/app"
)

// ResearchHandler serves the workflow step endpoints. Each endpoint maps to
// exactly one phase transition; preconditions surface as HTTP conflicts.
type ResearchHandler struct {
	workflow *app.ResearchService
	logger   logging.Logger
}

// NewResearchHandler creates a new research handler.
func NewResearchHandler(workflow *app.ResearchService) *ResearchHandler {
	return &ResearchHandler{
		workflow: workflow,
		logger:   logging.NewComponentLogger("ResearchHandler"),
	}
}

type askQuestionsRequest struct {
	Topic string `json:"topic"`
}

// HandleAskQuestions submits the topic and returns clarifying questions.
func (h *ResearchHandler) HandleAskQuestions(c *gin.Context) {
	var req askQuestionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIResponse{Success: false, Error: "invalid request body: " + err.Error()})
		return
	}

	record, err := h.workflow.AskQuestions(c.Request.Context(), c.Param("id"), subject(c), req.Topic)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, record)
}

type submitFeedbackRequest struct {
	Feedback string `json:"feedback"`
}

// HandleSubmitFeedback records answers to the clarifying questions.
func (h *ResearchHandler) HandleSubmitFeedback(c *gin.Context) {
	var req submitFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIResponse{Success: false, Error: "invalid request body: " + err.Error()})
		return
	}

	record, err := h.workflow.SubmitFeedback(c.Request.Context(), c.Param("id"), subject(c), req.Feedback)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, record)
}

// HandleWriteReportPlan generates the report plan and search task list.
func (h *ResearchHandler) HandleWriteReportPlan(c *gin.Context) {
	record, err := h.workflow.WriteReportPlan(c.Request.Context(), c.Param("id"), subject(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, record)
}

// HandleExecuteResearch runs the search tasks and synthesizes the final
// report. The call blocks until the session reaches a terminal phase; clients
// wanting progress subscribe to the event stream before calling.
func (h *ResearchHandler) HandleExecuteResearch(c *gin.Context) {
	record, err := h.workflow.ExecuteResearch(c.Request.Context(), c.Param("id"), subject(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, record)
}

type refineRequest struct {
	Target  string `json:"target"`
	Content string `json:"content,omitempty"`
}

// HandleRefine rewinds the session to an earlier phase with optional
// replacement content.
func (h *ResearchHandler) HandleRefine(c *gin.Context) {
	var req refineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIResponse{Success: false, Error: "invalid request body: " + err.Error()})
		return
	}

	record, err := h.workflow.Refine(c.Request.Context(), c.Param("id"), subject(c), research.Phase(req.Target), req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, record)
}
