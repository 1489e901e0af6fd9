package screens

import (
	"strings"

	"github.com/fmcunha/folioview/internal/app/models"
)

// Well-known screen ids referenced outside the catalog.
const (
	HomeID     = "home"
	DeniedID   = "denied"
	SecurityID = "security"
	AdminID    = "admin"
)

// Registry is the static catalog of application screens. Built once at
// startup, read-only afterwards.
type Registry struct {
	byID   map[string]models.ScreenDescriptor
	byPath map[string]models.ScreenDescriptor
	order  []string
}

// NewRegistry builds a registry from the given descriptors.
func NewRegistry(descriptors []models.ScreenDescriptor) *Registry {
	r := &Registry{
		byID:   make(map[string]models.ScreenDescriptor, len(descriptors)),
		byPath: make(map[string]models.ScreenDescriptor, len(descriptors)),
	}
	for _, d := range descriptors {
		r.byID[d.ID] = d
		r.byPath[d.Path] = d
		r.order = append(r.order, d.ID)
	}
	return r
}

// Default returns the folioview screen catalog.
func Default() *Registry {
	return NewRegistry([]models.ScreenDescriptor{
		{ID: HomeID, Path: "/", Label: "Overview"},
		{ID: "wallet", Path: "/wallet", Label: "Wallet"},
		{ID: "analysis", Path: "/analysis", Label: "Analysis"},
		{ID: "indicators", Path: "/indicators", Label: "Indicators"},
		{ID: "learn", Path: "/learn", Label: "Learn"},
		{ID: "profile", Path: "/profile", Label: "Profile"},
		{ID: AdminID, Path: "/admin", Label: "Administration"},
		{ID: SecurityID, Path: "/security/recovery", Label: "Recovery setup"},
		{ID: DeniedID, Path: "/denied", Label: "Access denied"},
	})
}

// ByID looks a screen up by its stable identifier.
func (r *Registry) ByID(id string) (models.ScreenDescriptor, bool) {
	d, ok := r.byID[id]
	return d, ok
}

// Resolve maps an arbitrary navigation target (canonical path or screen
// id) to zero-or-one screen. The root path resolves to the home screen;
// leading separators are stripped before id lookup. Unknown targets
// resolve to nothing, never to an error.
func (r *Registry) Resolve(target string) (models.ScreenDescriptor, bool) {
	if i := strings.IndexByte(target, '?'); i >= 0 {
		target = target[:i]
	}
	if target == "" || target == "/" {
		return r.byID[HomeID], true
	}
	if d, ok := r.byPath[target]; ok {
		return d, true
	}
	trimmed := strings.TrimLeft(target, "/")
	if d, ok := r.byID[trimmed]; ok {
		return d, true
	}
	if d, ok := r.byPath["/"+trimmed]; ok {
		return d, true
	}
	return models.ScreenDescriptor{}, false
}

// All returns the catalog in declaration order.
func (r *Registry) All() []models.ScreenDescriptor {
	out := make([]models.ScreenDescriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}
