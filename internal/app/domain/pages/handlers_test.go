package pages

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/fmcunha/folioview/internal/app/domain/screens"
	"github.com/fmcunha/folioview/internal/app/middleware"
	"github.com/fmcunha/folioview/internal/app/models"
)

func newPagesRouter(sess models.Session) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandlers(screens.Default(), nil)

	r := gin.New()
	r.Use(func(c *gin.Context) { middleware.SetSession(c, sess) })
	for _, screen := range screens.Default().All() {
		switch screen.ID {
		case screens.DeniedID:
			r.GET(screen.Path, h.Denied)
		case screens.SecurityID:
			r.GET(screen.Path, h.RecoverySetup)
		default:
			r.GET(screen.Path, h.Screen(screen.ID))
		}
	}
	return r
}

func confirmedSession(permitted []string) models.Session {
	return models.Session{
		Identity:         "ana",
		Role:             models.RoleStandard,
		PermittedScreens: models.NewScreenSet(permitted),
		Phase:            models.PhaseConfirmed,
	}
}

func TestScreenRenders(t *testing.T) {
	r := newPagesRouter(confirmedSession(nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/wallet", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Wallet")
	assert.Contains(t, w.Body.String(), "/api/security/status", "pages must poll the security status endpoint")
}

func TestNavListsOnlyPermittedScreens(t *testing.T) {
	r := newPagesRouter(confirmedSession([]string{"wallet", "home"}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/wallet", nil))

	body := w.Body.String()
	assert.Contains(t, body, `href="/wallet"`)
	assert.NotContains(t, body, `href="/admin"`)
	assert.NotContains(t, body, `href="/analysis"`)
}

func TestDeniedNamesBlockedTarget(t *testing.T) {
	r := newPagesRouter(confirmedSession([]string{}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/denied?from=%2Fadmin", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/admin")
}

func TestDeniedEscapesFromTarget(t *testing.T) {
	r := newPagesRouter(confirmedSession([]string{}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/denied?from=%2Fx%3Cscript%3Ealert(1)%3C%2Fscript%3E", nil))

	body := w.Body.String()
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, body, "<script>alert(1)</script>")
	assert.Contains(t, body, "&lt;script&gt;alert(1)&lt;/script&gt;")
}

func TestDeniedIgnoresExternalFromTarget(t *testing.T) {
	r := newPagesRouter(confirmedSession([]string{}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/denied?from=https%3A%2F%2Fevil.example", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "evil.example")
}

func TestRecoverySetupRendersForm(t *testing.T) {
	r := newPagesRouter(confirmedSession(nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/security/recovery", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `name="question"`)
	assert.Contains(t, w.Body.String(), `name="answer"`)
}
