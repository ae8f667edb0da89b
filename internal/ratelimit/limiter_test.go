package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/loopcrm/edgegate/internal/config"
)

func TestAPILimiterNilAdmitsEverything(t *testing.T) {
	var l *APILimiter
	assert.False(t, l.Enabled())
	assert.True(t, l.Allow(context.Background(), "user-1").Allowed)
}

func TestNewAPILimiterDisabledByConfig(t *testing.T) {
	cfg := config.Config{}
	assert.Nil(t, NewAPILimiter(cfg, nil, zap.NewNop()))
}

func TestNewAPILimiterRequiresRedis(t *testing.T) {
	cfg := config.Config{APIRateLimit: config.APIRateLimitConfig{Enabled: true, Rate: 50, Burst: 100}}
	assert.Nil(t, NewAPILimiter(cfg, nil, zap.NewNop()))
}

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, 4*time.Second, bucketTTL(50, 100))
	assert.Equal(t, time.Second, bucketTTL(1000, 1))
}

func TestCastHelpers(t *testing.T) {
	assert.Equal(t, int64(1), castToInt(int64(1)))
	assert.Equal(t, int64(3), castToInt(3.7))
	assert.Equal(t, int64(0), castToInt("nope"))

	assert.InDelta(t, 1.5, castToFloat("1.5"), 1e-9)
	assert.InDelta(t, 2.0, castToFloat(int64(2)), 1e-9)
	assert.Equal(t, 0.0, castToFloat("garbage"))
}

func TestTokenBucketNilSafety(t *testing.T) {
	var tb *TokenBucket
	_, err := tb.Allow(context.Background(), "k", 1, 1)
	assert.Error(t, err)
	assert.Nil(t, NewTokenBucket(nil))
}
