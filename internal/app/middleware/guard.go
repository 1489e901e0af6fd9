package middleware

import (
	"context"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fmcunha/folioview/internal/app/domain/access"
	"github.com/fmcunha/folioview/internal/app/domain/recovery"
	"github.com/fmcunha/folioview/internal/app/domain/screens"
	"github.com/fmcunha/folioview/internal/app/domain/session"
	"github.com/fmcunha/folioview/internal/app/models"
	"github.com/fmcunha/folioview/internal/app/observability/metrics"
)

// GuardState classifies a navigation.
type GuardState int

const (
	StateLoadingSession GuardState = iota
	StateUnauthenticated
	StateAllowed
	StateDenied
	StateSecuritySetupRequired
)

func (s GuardState) String() string {
	switch s {
	case StateLoadingSession:
		return "loading"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAllowed:
		return "allowed"
	case StateDenied:
		return "denied"
	case StateSecuritySetupRequired:
		return "security_setup_required"
	default:
		return "unknown"
	}
}

// SignInPath is where unauthenticated navigations land.
const SignInPath = "/signin"

// RouteGuard decides, per navigation, whether to render, block or
// redirect. There are no terminal states: every navigation and every
// session change re-evaluates from scratch.
type RouteGuard struct {
	sessions *session.Store
	registry *screens.Registry
	verifier *recovery.Verifier
	logger   *zap.Logger
}

// NewRouteGuard wires the guard.
func NewRouteGuard(sessions *session.Store, registry *screens.Registry, verifier *recovery.Verifier, logger *zap.Logger) *RouteGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RouteGuard{
		sessions: sessions,
		registry: registry,
		verifier: verifier,
		logger:   logger,
	}
}

// Decision is the outcome of evaluating one navigation.
type Decision struct {
	State      GuardState
	RedirectTo string
	// From carries the original path to the denial screen so it can
	// explain what was refused.
	From string
}

// Evaluate classifies a navigation target against a session snapshot.
// Deterministic: no I/O, no clock, no mutation.
func (g *RouteGuard) Evaluate(sess models.Session, started bool, path string) Decision {
	if !started {
		return Decision{State: StateLoadingSession}
	}
	if !sess.IsAuthenticated() {
		return Decision{State: StateUnauthenticated, RedirectTo: SignInPath}
	}

	if !access.CanAccess(g.registry, sess, path) {
		denied, _ := g.registry.ByID(screens.DeniedID)
		return Decision{
			State:      StateDenied,
			RedirectTo: denied.Path + "?from=" + url.QueryEscape(path),
			From:       path,
		}
	}
	return Decision{State: StateAllowed}
}

// Middleware applies the guard to screen routes. Allowed navigations
// render immediately; the security-recovery check runs in the
// background and its redirect, when due, is delivered through the
// status poll endpoint rather than by delaying this response.
func (g *RouteGuard) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if !g.sessions.Started() {
			// First navigation of the process: the provisional phase of
			// the refresh is synchronous, so this does not block on the
			// network.
			g.sessions.RefreshSession(c.Request.Context())
		}
		sess := g.sessions.Current()

		decision := g.Evaluate(sess, g.sessions.Started(), path)
		metrics.Get().GuardDecisionsTotal.Add(c.Request.Context(), 1,
			metric.WithAttributes(attribute.String("state", decision.State.String())))

		switch decision.State {
		case StateUnauthenticated:
			g.logger.Debug("Navigation without session", zap.String("path", path))
			handleRedirect(c, decision.RedirectTo)
			return
		case StateDenied:
			g.logger.Info("Navigation denied",
				zap.String("identity", sess.Identity),
				zap.String("path", path),
			)
			handleRedirect(c, decision.RedirectTo)
			return
		}

		g.scheduleSecurityCheck(sess, path)

		SetSession(c, sess)
		c.Next()
	}
}

// scheduleSecurityCheck warms the verification cache in the background.
// Only a confirmed session is worth checking: a provisional identity may
// be corrected away by the pending refresh. The setup screen itself is
// exempt, or the user could never reach the form.
func (g *RouteGuard) scheduleSecurityCheck(sess models.Session, path string) {
	if sess.Phase != models.PhaseConfirmed {
		return
	}
	if screen, ok := g.registry.Resolve(path); ok && screen.ID == screens.SecurityID {
		return
	}
	go func() {
		if !g.verifier.Check(context.Background(), sess.Identity) {
			g.logger.Info("Recovery setup missing, redirect pending",
				zap.String("identity", sess.Identity),
			)
		}
	}()
}

// handleRedirect redirects both regular and HTMX navigations.
func handleRedirect(c *gin.Context, redirectURL string) {
	if c.GetHeader("HX-Request") == "true" {
		c.Header("HX-Redirect", redirectURL)
		c.AbortWithStatus(http.StatusUnauthorized)
	} else {
		c.Redirect(http.StatusFound, redirectURL)
		c.Abort()
	}
}
