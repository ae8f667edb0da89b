package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/loopcrm/edgegate/internal/cache"
	"github.com/loopcrm/edgegate/internal/config"
	"github.com/loopcrm/edgegate/internal/faults"
	"github.com/loopcrm/edgegate/internal/observability/tracing"
	"github.com/loopcrm/edgegate/internal/resilience"
)

const bootstrapCacheKey = "bff:config"

// Bootstrap serves the SPA's startup configuration from the upstream,
// falling back to the last cached copy when the upstream is down so the
// app shell can still boot.
type Bootstrap struct {
	store        *cache.Store
	httpClient   *http.Client
	upstreamBase string
	log          *zap.Logger
}

func NewBootstrap(cfg config.Config, store *cache.Store, log *zap.Logger) *Bootstrap {
	return &Bootstrap{
		store:        store,
		httpClient:   tracing.WrapHTTPClient(&http.Client{Timeout: cfg.ProxyTimeout}),
		upstreamBase: cfg.UpstreamBaseURL,
		log:          log,
	}
}

func (b *Bootstrap) Handle(c *gin.Context) {
	ctx := c.Request.Context()

	result, err := resilience.WithGracefulDegradation(ctx,
		func(ctx context.Context) (map[string]any, error) {
			return resilience.Retry(ctx, resilience.RetryOptions{MaxAttempts: 2}, b.fetch)
		},
		func(ctx context.Context) (map[string]any, bool) {
			var cached map[string]any
			ok := b.store.Get(ctx, bootstrapCacheKey, &cached)
			return cached, ok
		},
		func(ctx context.Context, value map[string]any) {
			b.store.Set(ctx, bootstrapCacheKey, value)
		},
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if result.IsStale {
		b.log.Warn("serving stale bootstrap config", zap.Error(result.Err))
		c.Header("X-Stale-Data", "true")
	}
	c.JSON(http.StatusOK, result.Value)
}

func (b *Bootstrap) fetch(ctx context.Context) (map[string]any, error) {
	if b.upstreamBase == "" {
		return nil, faults.New(faults.KindStateError, "upstream not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.upstreamBase+"/api/v1/config", nil)
	if err != nil {
		return nil, faults.Wrap(faults.KindUnknown, "build bootstrap request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, faults.Wrap(faults.KindNetwork, "bootstrap config unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, faults.Wrap(faults.KindNetwork, "read bootstrap config", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, faults.New(faults.KindUpstream, "bootstrap config unavailable")
	}

	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, faults.Wrap(faults.KindUpstream, "decode bootstrap config", err)
	}
	return out, nil
}
