// Package pages renders the dashboard screens. Content here is
// deliberately thin; the interesting work happens in the guard and the
// session layer before a request ever reaches a page handler.
package pages

import (
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fmcunha/folioview/internal/app/domain/access"
	"github.com/fmcunha/folioview/internal/app/domain/screens"
	"github.com/fmcunha/folioview/internal/app/middleware"
	"github.com/fmcunha/folioview/internal/app/models"
)

type Handlers struct {
	registry *screens.Registry
	logger   *zap.Logger
}

func NewHandlers(registry *screens.Registry, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{registry: registry, logger: logger}
}

// Screen returns a handler rendering the named screen. Access has
// already been decided by the guard when this runs.
func (h *Handlers) Screen(id string) gin.HandlerFunc {
	return func(c *gin.Context) {
		screen, ok := h.registry.ByID(id)
		if !ok {
			c.Status(http.StatusNotFound)
			return
		}
		sess := middleware.GetSessionFromContext(c)
		h.render(c, screen, sess, screenBodyHTML(screen, sess))
	}
}

// Denied renders the access-denied screen, naming the blocked target
// when the guard passed one along.
func (h *Handlers) Denied(c *gin.Context) {
	screen, _ := h.registry.ByID(screens.DeniedID)
	sess := middleware.GetSessionFromContext(c)

	body := "<h1>Access denied</h1>\n<p>Your account does not have access to this screen.</p>"
	if from := c.Query("from"); from != "" && strings.HasPrefix(from, "/") {
		body = fmt.Sprintf("<h1>Access denied</h1>\n<p>Your account does not have access to <code>%s</code>.</p>",
			html.EscapeString(from))
	}
	body += "\n<p><a href=\"/\">Back to home</a></p>"

	h.render(c, screen, sess, body)
}

// RecoverySetup renders the recovery-question form screen.
func (h *Handlers) RecoverySetup(c *gin.Context) {
	screen, _ := h.registry.ByID(screens.SecurityID)
	sess := middleware.GetSessionFromContext(c)

	body := `<h1>Recovery setup</h1>
<p>Set a recovery question so you can regain access if you lose your password.</p>
<form hx-post="/security/recovery" method="post">
<label>Question <input type="text" name="question"></label>
<label>Answer <input type="text" name="answer"></label>
<button type="submit">Save</button>
</form>`

	h.render(c, screen, sess, body)
}

func (h *Handlers) render(c *gin.Context, screen models.ScreenDescriptor, sess models.Session, body string) {
	page := fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s · folioview</title>
<script src="https://unpkg.com/htmx.org@1.9.12"></script>
</head>
<body hx-get="/api/security/status" hx-trigger="load delay:2s, every 30s" hx-swap="none">
%s
<main>%s</main>
</body>
</html>`, screen.Label, h.navHTML(sess), body)
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
}

// navHTML lists only the screens the session may open. The guard would
// block the rest anyway; hiding them keeps the chrome honest.
func (h *Handlers) navHTML(sess models.Session) string {
	var b strings.Builder
	b.WriteString(`<nav><ul>`)
	for _, screen := range h.registry.All() {
		if screen.ID == screens.DeniedID || screen.ID == screens.SecurityID {
			continue
		}
		if !access.CanAccess(h.registry, sess, screen.Path) {
			continue
		}
		fmt.Fprintf(&b, `<li><a href="%s">%s</a></li>`, screen.Path, screen.Label)
	}
	fmt.Fprintf(&b, `<li><form hx-post="/logout" method="post"><button type="submit">Sign out (%s)</button></form></li>`,
		html.EscapeString(sess.Identity))
	b.WriteString(`</ul></nav>`)
	return b.String()
}

func screenBodyHTML(screen models.ScreenDescriptor, sess models.Session) string {
	switch screen.ID {
	case screens.HomeID:
		return fmt.Sprintf("<h1>Welcome back, %s</h1>\n<p>Your portfolio at a glance.</p>",
			html.EscapeString(sess.Identity))
	case screens.AdminID:
		return "<h1>Administration</h1>\n<p>Account and screen management.</p>"
	default:
		return fmt.Sprintf("<h1>%s</h1>", screen.Label)
	}
}
