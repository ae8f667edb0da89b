// Package gateway is the page-routing edge: it decodes the session cookie,
// classifies the requested path, and either serves the SPA shell, serves a
// static asset, or redirects to where the session must land.
package gateway

import (
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/loopcrm/edgegate/internal/config"
	"github.com/loopcrm/edgegate/internal/observability/logger"
	"github.com/loopcrm/edgegate/internal/observability/metrics"
	"github.com/loopcrm/edgegate/internal/observability/obsctx"
	"github.com/loopcrm/edgegate/internal/onboarding"
	"github.com/loopcrm/edgegate/internal/routing"
	"github.com/loopcrm/edgegate/internal/session"
)

// Identity headers attached to served requests for downstream consumption.
// Access and refresh tokens never appear here.
const (
	headerUserID             = "X-User-Id"
	headerTenantID           = "X-Tenant-Id"
	headerUserRole           = "X-User-Role"
	headerOnboardingStatus   = "X-Onboarding-Status"
	headerOnboardingStep     = "X-Onboarding-Step"
	headerRequiresOnboarding = "X-Requires-Onboarding"
)

type Gateway struct {
	sessions  *session.Manager
	codec     *session.Codec
	routes    *routing.Holder
	metrics   *metrics.Metrics
	log       *zap.Logger
	publicDir string
}

func New(cfg config.Config, sessions *session.Manager, codec *session.Codec, routes *routing.Holder, m *metrics.Metrics, log *zap.Logger) *Gateway {
	return &Gateway{
		sessions:  sessions,
		codec:     codec,
		routes:    routes,
		metrics:   m,
		log:       log,
		publicDir: cfg.PublicDir,
	}
}

// visitor is the request's authentication disposition. Verification
// failures never propagate; they collapse to unauthenticated plus the
// hadInvalidCookie flag that drives cookie cleanup on redirect.
type visitor struct {
	authenticated    bool
	hadInvalidCookie bool
	payload          session.Payload
	state            onboarding.State
}

func (g *Gateway) identify(c *gin.Context) visitor {
	token, ok := g.sessions.ReadToken(c)
	if !ok {
		return visitor{}
	}

	payload, err := g.codec.Verify(token)
	if err != nil {
		g.metrics.RecordSessionVerification(c.Request.Context(), "invalid")
		logger.FromContext(c.Request.Context()).Debug("session cookie rejected", zap.Error(err))
		return visitor{hadInvalidCookie: true}
	}

	g.metrics.RecordSessionVerification(c.Request.Context(), "valid")

	// The request log and downstream spans correlate on the verified
	// identity.
	ctx := obsctx.WithTenantID(obsctx.WithUserID(c.Request.Context(), payload.UserID), payload.TenantID)
	c.Request = c.Request.WithContext(ctx)

	return visitor{
		authenticated: true,
		payload:       payload,
		state:         onboarding.StateFromPayload(payload),
	}
}

// Handle is the NoRoute fallback: every path that is not an API or
// operational route lands here.
func (g *Gateway) Handle(c *gin.Context) {
	path := c.Request.URL.Path
	table := g.routes.Get()
	v := g.identify(c)

	switch table.Classify(path) {
	case routing.GuestOnly:
		g.handleGuestOnly(c, table, v)
	case routing.Protected:
		g.handleProtected(c, table, v, path)
	case routing.Onboarding:
		g.handleOnboarding(c, table, v, path)
	default:
		g.handlePublic(c, table, v, path)
	}
}

func (g *Gateway) handlePublic(c *gin.Context, table routing.Table, v visitor, path string) {
	// The marketing root is the one public page that forwards signed-in
	// users into the app.
	if v.authenticated && table.IsRoot(path) {
		dest := onboarding.ResolveDestination(v.state, v.payload.HasTenant(), table.DefaultAppPath, table.DefaultAppPath)
		g.redirect(c, dest, "authenticated_on_root")
		return
	}
	g.serve(c, v, "public")
}

func (g *Gateway) handleGuestOnly(c *gin.Context, table routing.Table, v visitor) {
	if !v.authenticated {
		c.Header("Cache-Control", "public, max-age=300")
		g.serve(c, v, "guest")
		return
	}
	dest := onboarding.ResolveDestination(v.state, v.payload.HasTenant(), table.DefaultAppPath, table.DefaultAppPath)
	g.redirect(c, dest, "authenticated_on_guest_page")
}

func (g *Gateway) handleProtected(c *gin.Context, table routing.Table, v visitor, path string) {
	if !v.authenticated {
		g.redirectToLogin(c, table, v, path)
		return
	}

	if v.state.Required && v.state.Status != onboarding.StatusCompleted {
		dest := onboarding.ResolveDestination(v.state, v.payload.HasTenant(), path, table.DefaultAppPath)
		g.redirect(c, dest, "onboarding_required")
		return
	}

	// Unreachable given the onboarding invariants; kept as a safety net so
	// a tenant-less session can never browse the app.
	if !v.payload.HasTenant() {
		g.redirect(c, onboarding.PathCreateBusiness, "missing_tenant")
		return
	}

	g.serve(c, v, "protected")
}

func (g *Gateway) handleOnboarding(c *gin.Context, table routing.Table, v visitor, path string) {
	if !v.authenticated {
		if v.hadInvalidCookie {
			g.sessions.Clear(c)
		}
		g.redirect(c, table.SignupPath, "unauthenticated_onboarding")
		return
	}

	if !v.state.Required || v.state.Status == onboarding.StatusCompleted {
		g.redirect(c, table.DefaultAppPath, "onboarding_complete")
		return
	}

	// A session that already has a tenant gets forwarded past the stale
	// create-business form to whatever step actually comes next.
	if v.payload.HasTenant() && matchesPath(path, onboarding.PathCreateBusiness) {
		next := onboarding.NextStepPath(v.state, true, table.DefaultAppPath)
		if next != path {
			g.redirect(c, next, "tenant_on_create_business")
			return
		}
	}

	g.serve(c, v, "onboarding")
}

func (g *Gateway) redirectToLogin(c *gin.Context, table routing.Table, v visitor, path string) {
	query := url.Values{"redirect": []string{path}}
	reason := "unauthenticated"
	if v.hadInvalidCookie {
		g.sessions.Clear(c)
		query.Set("error", "session_expired")
		reason = "session_expired"
	}
	g.redirect(c, table.LoginPath+"?"+query.Encode(), reason)
}

func (g *Gateway) redirect(c *gin.Context, location, reason string) {
	g.metrics.RecordGatewayDecision(c.Request.Context(), "redirect", reason)
	c.Redirect(http.StatusFound, location)
}

// serve answers with a static asset when one exists, else the SPA shell.
// Authenticated requests carry read-only identity headers.
func (g *Gateway) serve(c *gin.Context, v visitor, reason string) {
	if v.authenticated {
		g.setIdentityHeaders(c, v)
	}
	g.metrics.RecordGatewayDecision(c.Request.Context(), "serve", reason)

	if asset, ok := g.staticAsset(c.Request.URL.Path); ok {
		c.File(asset)
		return
	}
	c.File(filepath.Join(g.publicDir, "index.html"))
}

func (g *Gateway) setIdentityHeaders(c *gin.Context, v visitor) {
	c.Header(headerUserID, v.payload.UserID)
	c.Header(headerTenantID, v.payload.TenantID)
	c.Header(headerUserRole, v.payload.Role)
	c.Header(headerOnboardingStatus, v.state.Status)
	c.Header(headerOnboardingStep, v.state.Step)
	c.Header(headerRequiresOnboarding, strconv.FormatBool(v.state.Required))
}

func (g *Gateway) staticAsset(reqPath string) (string, bool) {
	clean := filepath.Clean(reqPath)
	if clean == "." || clean == "/" || strings.HasPrefix(clean, "..") {
		return "", false
	}
	full := filepath.Join(g.publicDir, clean)
	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		return "", false
	}
	return full, true
}

func matchesPath(path, target string) bool {
	return path == target || strings.HasPrefix(path, target+"/")
}
