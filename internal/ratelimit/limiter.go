package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/loopcrm/edgegate/internal/config"
)

const keyAPIUser = "api:user:%s"

// APILimiter throttles proxied API calls per authenticated user. A nil
// limiter, a disabled config, or a missing redis client all mean every
// call is admitted.
type APILimiter struct {
	enabled bool
	bucket  *TokenBucket
	rate    float64
	burst   int
	log     *zap.Logger
}

func NewAPILimiter(cfg config.Config, client *redis.Client, log *zap.Logger) *APILimiter {
	if !cfg.APIRateLimit.Enabled {
		return nil
	}
	if client == nil {
		log.Warn("api rate limiting enabled without redis, limiter disabled")
		return nil
	}
	return &APILimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		rate:    cfg.APIRateLimit.Rate,
		burst:   cfg.APIRateLimit.Burst,
		log:     log,
	}
}

func (l *APILimiter) Enabled() bool {
	return l != nil && l.enabled
}

// Allow consumes one token for userID. Redis failures admit the call;
// losing rate limiting is preferable to failing the whole API surface.
func (l *APILimiter) Allow(ctx context.Context, userID string) Result {
	if !l.Enabled() {
		return Result{Allowed: true}
	}

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Result{Allowed: true}
	}

	result, err := l.bucket.Allow(ctx, fmt.Sprintf(keyAPIUser, userID), l.rate, l.burst)
	if err != nil {
		l.log.Warn("rate limit check failed, admitting request", zap.Error(err))
		return Result{Allowed: true}
	}
	return result
}
