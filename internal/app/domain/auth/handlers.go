// Package auth carries the sign-in, sign-out, and provider-callback
// endpoints. The session itself lives in the session package; handlers
// here only translate HTTP into store calls.
package auth

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/fmcunha/folioview/internal/app/domain/recovery"
	"github.com/fmcunha/folioview/internal/app/domain/screens"
	"github.com/fmcunha/folioview/internal/app/domain/session"
	"github.com/fmcunha/folioview/internal/app/middleware"
	"github.com/fmcunha/folioview/internal/app/models"
)

// Accounts is the slice of the folio API used for account creation and
// password recovery.
type Accounts interface {
	Register(ctx context.Context, identity, secret string) error
	ForgotPassword(ctx context.Context, identity string) error
}

type Handlers struct {
	sessions       *session.Store
	recovery       *recovery.Service
	verifier       *recovery.Verifier
	registry       *screens.Registry
	accounts       Accounts
	callbackSecret string
	logger         *zap.Logger
}

func NewHandlers(sessions *session.Store, recoverySvc *recovery.Service, verifier *recovery.Verifier, registry *screens.Registry, accounts Accounts, callbackSecret string, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		sessions:       sessions,
		recovery:       recoverySvc,
		verifier:       verifier,
		registry:       registry,
		accounts:       accounts,
		callbackSecret: callbackSecret,
		logger:         logger,
	}
}

// SignInPage renders the sign-in form. An already authenticated session
// goes straight home.
func (h *Handlers) SignInPage(c *gin.Context) {
	if h.sessions.Current().IsAuthenticated() {
		c.Redirect(http.StatusFound, "/")
		return
	}
	renderPage(c, "Sign in", signInFormHTML(""))
}

// Login handles the sign-in form POST. On bad credentials the existing
// session, if any, is left untouched and the form re-renders with a
// message.
func (h *Handlers) Login(c *gin.Context) {
	identity := c.PostForm("identity")
	secret := c.PostForm("secret")
	if identity == "" || secret == "" {
		c.Status(http.StatusBadRequest)
		renderPage(c, "Sign in", signInFormHTML("Identity and password are required."))
		return
	}

	if err := h.sessions.Login(c.Request.Context(), identity, secret); err != nil {
		if errors.Is(err, models.ErrUnauthenticated) {
			c.Status(http.StatusUnauthorized)
			renderPage(c, "Sign in", signInFormHTML("Invalid identity or password."))
			return
		}
		h.logger.Error("Login failed", zap.Error(err))
		c.Status(http.StatusBadGateway)
		renderPage(c, "Sign in", signInFormHTML("Sign-in is temporarily unavailable."))
		return
	}

	redirectAfterAuth(c, "/")
}

// Logout terminates the session unconditionally and lands on sign-in,
// whatever the backend said.
func (h *Handlers) Logout(c *gin.Context) {
	h.sessions.Logout(c.Request.Context())
	redirectAfterAuth(c, middleware.SignInPath)
}

// Callback consumes the external identity provider redirect. A valid
// token seeds an optimistic session which the immediate refresh then
// confirms against the backend.
func (h *Handlers) Callback(c *gin.Context) {
	if providerErr := c.Query("error"); providerErr != "" {
		h.logger.Warn("Provider callback returned error", zap.String("error", providerErr))
		c.Redirect(http.StatusFound, middleware.SignInPath)
		return
	}

	token := c.Query("token")
	if token == "" {
		// A callback carrying neither token nor error is malformed.
		h.failCallback(c, errors.Wrap(models.ErrInvalidCallback, "callback carried no token"))
		return
	}

	claims, err := ParseCallbackToken(h.callbackSecret, token)
	if err != nil {
		h.failCallback(c, err)
		return
	}

	role := models.RoleStandard
	if claims.Role == string(models.RoleAdmin) {
		role = models.RoleAdmin
	}

	h.sessions.SetIdentityFromExternalToken(c.Request.Context(), claims.Identity, role)
	h.sessions.RefreshSession(c.Request.Context())
	c.Redirect(http.StatusFound, "/")
}

// failCallback rejects an invalid provider callback and lands the user
// back on the sign-in form with an explanation.
func (h *Handlers) failCallback(c *gin.Context, err error) {
	h.logger.Warn("Provider callback rejected", zap.Error(err))
	message := "Sign-in with the provider failed. Try again."
	if errors.Is(err, models.ErrInvalidCallback) {
		message = "The sign-in link was invalid or expired. Try again."
	}
	c.Status(http.StatusBadRequest)
	renderPage(c, "Sign in", signInFormHTML(message))
}

// Register creates an account and signs it in on success.
func (h *Handlers) Register(c *gin.Context) {
	identity := c.PostForm("identity")
	secret := c.PostForm("secret")
	if identity == "" || secret == "" {
		c.Status(http.StatusBadRequest)
		renderPage(c, "Create account", registerFormHTML("Identity and password are required."))
		return
	}

	if err := h.accounts.Register(c.Request.Context(), identity, secret); err != nil {
		h.logger.Error("Registration failed", zap.Error(err))
		c.Status(http.StatusBadRequest)
		renderPage(c, "Create account", registerFormHTML("Could not create the account."))
		return
	}

	if err := h.sessions.Login(c.Request.Context(), identity, secret); err != nil {
		c.Redirect(http.StatusFound, middleware.SignInPath)
		return
	}
	redirectAfterAuth(c, "/")
}

// RegisterPage renders the account creation form.
func (h *Handlers) RegisterPage(c *gin.Context) {
	renderPage(c, "Create account", registerFormHTML(""))
}

// ForgotPasswordPage renders the reset request form.
func (h *Handlers) ForgotPasswordPage(c *gin.Context) {
	renderPage(c, "Reset password", forgotFormHTML(""))
}

// ForgotPassword asks the backend to start the out-of-band reset flow.
// The confirmation message is the same whether or not the identity
// exists; the backend decides what to reveal.
func (h *Handlers) ForgotPassword(c *gin.Context) {
	identity := c.PostForm("identity")
	if identity == "" {
		c.Status(http.StatusBadRequest)
		renderPage(c, "Reset password", forgotFormHTML("Enter your identity."))
		return
	}

	if err := h.accounts.ForgotPassword(c.Request.Context(), identity); err != nil {
		h.logger.Warn("Password reset request failed", zap.Error(err))
		c.Status(http.StatusBadGateway)
		renderPage(c, "Reset password", forgotFormHTML("Could not start the reset. Try again later."))
		return
	}

	renderPage(c, "Reset password", `<h1>Reset password</h1>
<p>If that account exists, reset instructions are on their way.</p>`)
}

// UpdateRecoveryQuestion handles the recovery setup form POST.
func (h *Handlers) UpdateRecoveryQuestion(c *gin.Context) {
	sess := middleware.GetSessionFromContext(c)
	if !sess.IsAuthenticated() {
		c.Redirect(http.StatusFound, middleware.SignInPath)
		return
	}

	question := c.PostForm("question")
	answer := c.PostForm("answer")
	if question == "" || answer == "" {
		c.Status(http.StatusBadRequest)
		renderPage(c, "Recovery setup", recoveryFormHTML("Both question and answer are required."))
		return
	}

	if err := h.recovery.UpdateRecoveryQuestion(c.Request.Context(), sess.Identity, question, answer); err != nil {
		h.logger.Error("Recovery question update failed", zap.Error(err))
		c.Status(http.StatusBadGateway)
		renderPage(c, "Recovery setup", recoveryFormHTML("Could not save the recovery question."))
		return
	}

	redirectAfterAuth(c, "/")
}

// SecurityStatus is the poll endpoint behind the background recovery
// check. It answers 204 while nothing needs attention and an HX-Redirect
// to the setup screen once the check reports a missing recovery
// question.
func (h *Handlers) SecurityStatus(c *gin.Context) {
	sess := h.sessions.Current()
	if sess.Phase != models.PhaseConfirmed {
		c.Status(http.StatusNoContent)
		return
	}

	if h.verifier.Check(c.Request.Context(), sess.Identity) {
		c.Status(http.StatusNoContent)
		return
	}

	target := "/security/recovery"
	if screen, ok := h.registry.ByID(screens.SecurityID); ok {
		target = screen.Path
	}
	c.Header("HX-Redirect", target)
	c.Status(http.StatusOK)
}

// RefreshScreens re-fetches the permitted screen list for the current
// identity.
func (h *Handlers) RefreshScreens(c *gin.Context) {
	if err := h.sessions.RefreshPermittedScreens(c.Request.Context()); err != nil {
		h.logger.Error("Screen list refresh failed", zap.Error(err))
		c.Status(http.StatusBadGateway)
		return
	}
	c.Status(http.StatusNoContent)
}

// redirectAfterAuth follows the HTMX convention: header redirect for
// HX requests, 302 for plain form posts.
func redirectAfterAuth(c *gin.Context, target string) {
	if c.GetHeader("HX-Request") == "true" {
		c.Header("HX-Redirect", target)
		c.Status(http.StatusOK)
		return
	}
	c.Redirect(http.StatusFound, target)
}
