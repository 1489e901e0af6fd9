// Package routes wires handlers into the gin engine and owns the
// construction of the domain services they depend on.
package routes

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fmcunha/folioview/internal/api"
	"github.com/fmcunha/folioview/internal/app/domain/auth"
	"github.com/fmcunha/folioview/internal/app/domain/pages"
	"github.com/fmcunha/folioview/internal/app/domain/recovery"
	"github.com/fmcunha/folioview/internal/app/domain/screens"
	"github.com/fmcunha/folioview/internal/app/domain/session"
	"github.com/fmcunha/folioview/internal/app/middleware"
	"github.com/fmcunha/folioview/internal/pkg/cache"
	"github.com/fmcunha/folioview/internal/pkg/config"
	"github.com/fmcunha/folioview/internal/pkg/statestore"
)

// App bundles the wired domain layer. main keeps a reference for the
// pieces with a lifecycle of their own (session refresh, cross-process
// sync).
type App struct {
	Registry *screens.Registry
	Sessions *session.Store
	Verifier *recovery.Verifier
	Guard    *middleware.RouteGuard

	Auth  *auth.Handlers
	Pages *pages.Handlers
}

// SetupDependencies builds the domain services on top of the API client
// and the shared state store.
func SetupDependencies(cfg *config.Config, apiClient *api.Client, state statestore.Store, caches *cache.Registry, log *zap.Logger) *App {
	registry := screens.Default()

	recoveryCache := recovery.NewCache(state, log)
	caches.Register(recoveryCache)

	sessions := session.NewStore(apiClient, state, caches, log)
	verifier := recovery.NewVerifier(recoveryCache, apiClient, sessions, log)
	recoveryService := recovery.NewService(apiClient, recoveryCache, log)

	guard := middleware.NewRouteGuard(sessions, registry, verifier, log)

	return &App{
		Registry: registry,
		Sessions: sessions,
		Verifier: verifier,
		Guard:    guard,
		Auth:     auth.NewHandlers(sessions, recoveryService, verifier, registry, apiClient, cfg.Auth.CallbackSecret, log),
		Pages:    pages.NewHandlers(registry, log),
	}
}

// Setup registers all routes on the engine. Screen routes sit behind
// the route guard; sign-in, the provider callback, and the security
// poll endpoint are reachable without a session.
func Setup(r *gin.Engine, app *App, log *zap.Logger) {
	r.GET("/signin", app.Auth.SignInPage)
	r.POST("/signin", app.Auth.Login)
	r.GET("/register", app.Auth.RegisterPage)
	r.POST("/register", app.Auth.Register)
	r.GET("/forgot-password", app.Auth.ForgotPasswordPage)
	r.POST("/forgot-password", app.Auth.ForgotPassword)
	r.POST("/logout", app.Auth.Logout)
	r.GET("/auth/callback", app.Auth.Callback)

	// Pages poll this for the deferred recovery-question verdict, so it
	// must answer even while the guard would still be redirecting.
	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/security/status", app.Auth.SecurityStatus)
		apiGroup.POST("/screens/refresh", app.Auth.RefreshScreens)
	}

	protected := r.Group("/")
	protected.Use(app.Guard.Middleware())
	{
		for _, screen := range app.Registry.All() {
			switch screen.ID {
			case screens.DeniedID:
				protected.GET(screen.Path, app.Pages.Denied)
			case screens.SecurityID:
				protected.GET(screen.Path, app.Pages.RecoverySetup)
				protected.POST(screen.Path, app.Auth.UpdateRecoveryQuestion)
			default:
				protected.GET(screen.Path, app.Pages.Screen(screen.ID))
			}
		}
	}

	log.Info("Routes registered", zap.Int("screens", len(app.Registry.All())))
}
