package llm

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"deepresearch/internal/identity"
)

// userRateLimitedClient applies per-subject rate limiting around completion
// calls so one chatty session cannot starve outbound LLM capacity.
type userRateLimitedClient struct {
	base   Client
	limit  rate.Limit
	burst  int
	mu     sync.Mutex
	bucket map[string]*rate.Limiter
}

// WrapWithUserRateLimit wraps the provided client with a per-subject limiter
// when a positive limit is supplied. A burst less than 1 is coerced to 1.
func WrapWithUserRateLimit(client Client, limit rate.Limit, burst int) Client {
	if limit <= 0 {
		return client
	}
	if burst < 1 {
		burst = 1
	}
	return &userRateLimitedClient{
		base:   client,
		limit:  limit,
		burst:  burst,
		bucket: make(map[string]*rate.Limiter),
	}
}

func (c *userRateLimitedClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := c.reserve(ctx); err != nil {
		return nil, err
	}
	return c.base.Complete(ctx, req)
}

func (c *userRateLimitedClient) reserve(ctx context.Context) error {
	subject := identity.SubjectFromContext(ctx)
	if subject == "" {
		subject = "anonymous"
	}

	c.mu.Lock()
	limiter, ok := c.bucket[subject]
	if !ok {
		limiter = rate.NewLimiter(c.limit, c.burst)
		c.bucket[subject] = limiter
	}
	c.mu.Unlock()

	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("llm rate limit wait: %w", err)
	}
	return nil
}
