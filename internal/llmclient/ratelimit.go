package llmclient

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/uxagent/api/schemas"
)

// RateLimitedClient spaces out requests to the wrapped client.
type RateLimitedClient struct {
	next    schemas.LLMClient
	limiter *rate.Limiter
	logger  *zap.Logger
}

var _ schemas.LLMClient = (*RateLimitedClient)(nil)

// NewRateLimitedClient allows requestsPerMinute calls per minute with a burst
// of one.
func NewRateLimitedClient(next schemas.LLMClient, requestsPerMinute int, logger *zap.Logger) *RateLimitedClient {
	return &RateLimitedClient{
		next:    next,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1),
		logger:  logger.Named("llm_ratelimit"),
	}
}

func (c *RateLimitedClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	if c.limiter.Tokens() < 1 {
		c.logger.Debug("Waiting for rate limiter.")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter wait: %w", err)
	}
	return c.next.Generate(ctx, req)
}

func (c *RateLimitedClient) Close() error {
	return c.next.Close()
}
