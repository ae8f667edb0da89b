// Package broker is the backend-for-frontend proxy: it turns a cookie
// authenticated browser call into an upstream API call carrying a valid
// bearer token, refreshing the token first when it is about to expire.
package broker

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/loopcrm/edgegate/internal/config"
	"github.com/loopcrm/edgegate/internal/faults"
	"github.com/loopcrm/edgegate/internal/observability/logger"
	"github.com/loopcrm/edgegate/internal/observability/metrics"
	"github.com/loopcrm/edgegate/internal/observability/obsctx"
	"github.com/loopcrm/edgegate/internal/observability/tracing"
	"github.com/loopcrm/edgegate/internal/ratelimit"
	"github.com/loopcrm/edgegate/internal/resilience"
	"github.com/loopcrm/edgegate/internal/session"
)

const upstreamAPIPrefix = "/api/v1"

const refreshTimeout = 10 * time.Second

type Broker struct {
	sessions *session.Manager
	codec    *session.Codec
	refresh  *RefreshClient
	limiter  *ratelimit.APILimiter
	metrics  *metrics.Metrics
	log      *zap.Logger

	upstreamBase  string
	refreshBuffer time.Duration
	proxyTimeout  time.Duration

	// One breaker for the upstream auth dependency, shared across
	// requests. Rebuilding it per request would defeat it.
	refreshBreaker *resilience.CircuitBreaker

	httpClient *http.Client
	now        func() time.Time
}

func New(cfg config.Config, sessions *session.Manager, codec *session.Codec, limiter *ratelimit.APILimiter, m *metrics.Metrics, log *zap.Logger) *Broker {
	httpClient := tracing.WrapHTTPClient(&http.Client{Timeout: cfg.ProxyTimeout})
	b := &Broker{
		sessions:       sessions,
		codec:          codec,
		refresh:        NewRefreshClient(cfg.UpstreamBaseURL, httpClient),
		limiter:        limiter,
		metrics:        m,
		log:            log,
		upstreamBase:   cfg.UpstreamBaseURL,
		refreshBuffer:  cfg.RefreshBuffer,
		proxyTimeout:   cfg.ProxyTimeout,
		refreshBreaker: resilience.NewCircuitBreaker(5, 30*time.Second, 1),
		httpClient:     httpClient,
		now:            time.Now,
	}
	b.refreshBreaker.OnStateChange = func(_, to resilience.BreakerState) {
		m.RecordBreakerTransition(context.Background(), to.String())
	}
	return b
}

// Handle proxies /api/*path calls to the upstream service.
func (b *Broker) Handle(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.WithContext(ctx, b.log)

	token, ok := b.sessions.ReadToken(c)
	if !ok {
		b.abort(c, faults.New(faults.KindUnauthorized, "authentication required"))
		return
	}

	payload, err := b.codec.Verify(token)
	if err != nil {
		b.metrics.RecordSessionVerification(ctx, "invalid")
		b.abort(c, faults.New(faults.KindUnauthorized, "session invalid or expired"))
		return
	}
	b.metrics.RecordSessionVerification(ctx, "valid")

	// Downstream logs and spans correlate on the verified identity.
	ctx = obsctx.WithTenantID(obsctx.WithUserID(ctx, payload.UserID), payload.TenantID)
	c.Request = c.Request.WithContext(ctx)
	log = logger.WithContext(ctx, b.log)

	if result := b.limiter.Allow(ctx, payload.UserID); !result.Allowed {
		b.metrics.RecordRateLimitDenied(ctx, c.Request.URL.Path)
		if result.RetryAfter > 0 {
			c.Header("Retry-After", formatSeconds(result.RetryAfter))
		}
		b.abort(c, faults.New(faults.KindRateLimited, "too many requests"))
		return
	}

	if b.tokenStale(payload) {
		payload, err = b.refreshSession(c, payload)
		if err != nil {
			b.metrics.RecordTokenRefresh(ctx, "failure")
			log.Warn("token refresh failed", zap.Error(err))
			if faults.Is(err, faults.KindStateError) {
				b.abort(c, err)
				return
			}
			b.abort(c, faults.Wrap(faults.KindUnauthorized, "token refresh failed", err))
			return
		}
		b.metrics.RecordTokenRefresh(ctx, "success")
	}

	b.forward(c, payload)
}

// tokenStale applies the refresh look-ahead buffer. The stored expiry wins;
// without one the token's own exp claim is read unverified, as a freshness
// heuristic only, never an authorization input (the upstream re-validates
// the token on every call). No determinable expiry means forward as-is.
func (b *Broker) tokenStale(p session.Payload) bool {
	expiry, known := b.accessTokenExpiry(p)
	if !known {
		return false
	}
	return b.now().Add(b.refreshBuffer).After(expiry)
}

func (b *Broker) accessTokenExpiry(p session.Payload) (time.Time, bool) {
	if p.AccessTokenExpiresAt > 0 {
		return time.Unix(p.AccessTokenExpiresAt, 0), true
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(p.AccessToken, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// refreshSession rotates tokens through the breaker with bounded retries,
// then rewrites the session cookie with the new credentials. Identity
// fields never change here. Refreshes are not deduplicated across
// concurrent requests for the same session; the upstream must tolerate
// overlapping refresh calls within a short window.
func (b *Broker) refreshSession(c *gin.Context, p session.Payload) (session.Payload, error) {
	ctx := c.Request.Context()

	resp, err := resilience.Execute(ctx, b.refreshBreaker, func(ctx context.Context) (RefreshResponse, error) {
		return resilience.Retry(ctx, resilience.RetryOptions{MaxAttempts: 2}, func(ctx context.Context) (RefreshResponse, error) {
			return resilience.WithTimeout(ctx, refreshTimeout, "token refresh timed out", func(ctx context.Context) (RefreshResponse, error) {
				return b.refresh.Refresh(ctx, p.RefreshToken)
			})
		})
	})
	if err != nil {
		return session.Payload{}, err
	}

	expiresAt := resp.ExpiresAt
	if expiresAt == 0 && resp.ExpiresIn > 0 {
		expiresAt = b.now().Unix() + resp.ExpiresIn
	}

	rotated := p.WithRotatedTokens(resp.AccessToken, resp.RefreshToken, expiresAt)
	signed, err := b.codec.Sign(rotated)
	if err != nil {
		return session.Payload{}, faults.Wrap(faults.KindUnknown, "re-sign session", err)
	}
	b.sessions.Set(c, signed, time.Unix(rotated.ExpiresAt, 0))
	return rotated, nil
}

// forward relays method, path, query and body to the upstream API with the
// bearer and identity headers attached. Client credentials are stripped.
func (b *Broker) forward(c *gin.Context, p session.Payload) {
	if b.upstreamBase == "" {
		b.abort(c, faults.New(faults.KindStateError, "upstream not configured"))
		return
	}

	target := b.upstreamBase + upstreamAPIPrefix + c.Param("path")
	if raw := c.Request.URL.RawQuery; raw != "" {
		target += "?" + raw
	}

	req, err := http.NewRequestWithContext(c.Request.Context(), c.Request.Method, target, c.Request.Body)
	if err != nil {
		b.abort(c, faults.Wrap(faults.KindInvalidInput, "build upstream request", err))
		return
	}

	copyProxyHeaders(req.Header, c.Request.Header)
	req.Header.Set("Authorization", "Bearer "+p.AccessToken)
	req.Header.Set("x-tenant-id", p.TenantID)
	req.Header.Set("x-user-id", p.UserID)
	if c.Request.ContentLength >= 0 {
		req.ContentLength = c.Request.ContentLength
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		b.abort(c, faults.Wrap(faults.KindNetwork, "upstream unreachable", err))
		return
	}
	defer resp.Body.Close()

	b.metrics.RecordProxyRequest(c.Request.Context(), resp.StatusCode)
	relayResponse(c, resp)
}

// copyProxyHeaders forwards request headers to the upstream, dropping the
// browser's cookie jar and any client-supplied Authorization header.
func copyProxyHeaders(dst, src http.Header) {
	for name, values := range src {
		switch http.CanonicalHeaderKey(name) {
		case "Authorization", "Cookie", "Host", "Connection", "Content-Length":
			continue
		}
		for _, value := range values {
			dst.Add(name, value)
		}
	}
}

func (b *Broker) abort(c *gin.Context, err error) {
	kind := faults.KindOf(err)
	c.AbortWithStatusJSON(faults.HTTPStatus(kind), gin.H{
		"error": gin.H{
			"type":    string(kind),
			"message": faults.UserMessage(kind),
		},
	})
}

func formatSeconds(d time.Duration) string {
	secs := int(d.Seconds())
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
