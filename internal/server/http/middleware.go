package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"deepresearch/internal/identity"
	"deepresearch/internal/logging"
	"deepresearch/internal/ratelimit"
)

// SubjectMiddleware resolves the caller's subject identifier and stores it on
// the request context. The bearer token is treated as an opaque subject;
// requests without one proceed as anonymous. SSE clients cannot set headers,
// so an access_token query parameter is accepted as a fallback.
func SubjectMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		subject := extractBearerToken(c.GetHeader("Authorization"))
		if subject == "" {
			subject = strings.TrimSpace(c.Query("access_token"))
		}
		if subject != "" {
			c.Request = c.Request.WithContext(identity.WithSubject(c.Request.Context(), subject))
		}
		c.Next()
	}
}

func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// subject returns the caller's identity resolved by SubjectMiddleware, or ""
// for anonymous callers.
func subject(c *gin.Context) string {
	return identity.SubjectFromContext(c.Request.Context())
}

// RateLimitRule binds an operation name to its fixed-window quota.
type RateLimitRule struct {
	Operation string
	Limit     int
	Window    time.Duration
}

// RateLimitMiddleware enforces a per-subject fixed-window quota for one
// operation. The remaining quota and the window reset time are reported on
// every response, including denials.
func RateLimitMiddleware(limiter *ratelimit.Limiter, rule RateLimitRule) gin.HandlerFunc {
	logger := logging.NewComponentLogger("RateLimit")
	return func(c *gin.Context) {
		decision := limiter.Check(subject(c), rule.Operation, rule.Limit, rule.Window)

		if decision.Remaining >= 0 {
			c.Header("X-RateLimit-Limit", strconv.Itoa(rule.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			c.Header("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
		}

		if !decision.Allowed {
			logger.Warn("Rate limit exceeded: subject=%q operation=%s", subject(c), rule.Operation)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, APIResponse{
				Success: false,
				Error:   fmt.Sprintf("rate limit exceeded for %s, retry after %s", rule.Operation, decision.ResetAt.UTC().Format(time.RFC3339)),
			})
			return
		}
		c.Next()
	}
}

// LoggingMiddleware logs one line per request with latency and status.
func LoggingMiddleware(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Round(time.Millisecond))
	}
}
