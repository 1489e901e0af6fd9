package access

import (
	"github.com/fmcunha/folioview/internal/app/domain/screens"
	"github.com/fmcunha/folioview/internal/app/models"
)

// CanAccess decides whether the session may open the navigation target
// (a path or a screen id). Pure and total: same inputs always give the
// same answer, unknown targets are simply not reachable.
//
// Admins and unrestricted standard identities may open everything. The
// denial screen is always reachable so a restricted identity can see why
// access failed and navigate away.
func CanAccess(reg *screens.Registry, sess models.Session, target string) bool {
	if sess.IsAdmin() {
		return true
	}
	if sess.PermittedScreens.Unrestricted() {
		return true
	}

	screen, ok := reg.Resolve(target)
	if !ok {
		return false
	}
	if screen.ID == screens.DeniedID {
		return true
	}
	return sess.PermittedScreens.Has(screen.ID)
}
