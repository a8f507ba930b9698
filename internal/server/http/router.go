package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"deepresearch/internal/logging"
	"deepresearch/internal/ratelimit"
	"deepresearch/internal/server/app"
)

// Quota is a fixed-window request allowance. Zero Limit disables the check.
type Quota struct {
	Limit  int
	Window time.Duration
}

// RouterConfig carries the HTTP-facing knobs.
type RouterConfig struct {
	Debug          bool
	AllowedOrigins []string

	// Per-subject quotas by operation class.
	CreateSessionQuota Quota
	WorkflowQuota      Quota
	StreamQuota        Quota
}

// DefaultRouterConfig returns the quotas used when the config file leaves
// them unset.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		CreateSessionQuota: Quota{Limit: 20, Window: time.Minute},
		WorkflowQuota:      Quota{Limit: 30, Window: time.Minute},
		StreamQuota:        Quota{Limit: 60, Window: time.Minute},
	}
}

// NewRouter wires all endpoints. Stream endpoints live outside the workflow
// quota so a polling UI cannot starve its own research steps.
func NewRouter(sessions *app.SessionService, workflow *app.ResearchService, limiter *ratelimit.Limiter, cfg RouterConfig) *gin.Engine {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(LoggingMiddleware(logging.NewComponentLogger("HTTP")))

	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Requested-With"}
	corsConfig.AllowWebSockets = true
	engine.Use(cors.New(corsConfig))

	engine.Use(SubjectMiddleware())

	sessionHandler := NewSessionHandler(sessions)
	researchHandler := NewResearchHandler(workflow)
	sseHandler := NewSSEHandler(sessions)
	wsHandler := NewWSHandler(sessions)

	quota := func(operation string, q Quota) gin.HandlerFunc {
		return RateLimitMiddleware(limiter, RateLimitRule{Operation: operation, Limit: q.Limit, Window: q.Window})
	}

	engine.GET("/health", handleHealth)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := engine.Group("/api")

	api.POST("/sessions", quota("create_session", cfg.CreateSessionQuota), sessionHandler.HandleCreateSession)
	api.GET("/sessions", sessionHandler.HandleListSessions)
	api.GET("/sessions/:id", sessionHandler.HandleGetSession)
	api.PATCH("/sessions/:id", sessionHandler.HandleUpdateSession)
	api.DELETE("/sessions/:id", sessionHandler.HandleDeleteSession)

	steps := api.Group("/sessions/:id")
	{
		steps.POST("/ask-questions", quota("ask_questions", cfg.WorkflowQuota), researchHandler.HandleAskQuestions)
		steps.POST("/feedback", quota("submit_feedback", cfg.WorkflowQuota), researchHandler.HandleSubmitFeedback)
		steps.POST("/report-plan", quota("write_report_plan", cfg.WorkflowQuota), researchHandler.HandleWriteReportPlan)
		steps.POST("/execute", quota("execute_research", cfg.WorkflowQuota), researchHandler.HandleExecuteResearch)
		steps.POST("/refine", quota("refine", cfg.WorkflowQuota), researchHandler.HandleRefine)
	}

	api.GET("/sessions/:id/events", quota("stream", cfg.StreamQuota), sseHandler.HandleStream)
	api.GET("/sessions/:id/stream", quota("stream", cfg.StreamQuota), wsHandler.HandleStream)

	return engine
}

func handleHealth(c *gin.Context) {
	respondOK(c, gin.H{"status": "ok", "time": time.Now().UTC()})
}
