// Package session owns the authenticated state of the process. The
// Store is the only writer; everything else reads immutable snapshots.
package session

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/fmcunha/folioview/internal/api"
	"github.com/fmcunha/folioview/internal/app/models"
	"github.com/fmcunha/folioview/internal/app/observability/metrics"
	"github.com/fmcunha/folioview/internal/pkg/cache"
	"github.com/fmcunha/folioview/internal/pkg/statestore"
)

// API is the slice of the folio API the store needs.
type API interface {
	Login(ctx context.Context, identity, secret string) (*api.Identity, error)
	Logout(ctx context.Context) error
	CurrentIdentity(ctx context.Context) (*api.Identity, error)
	PermittedScreens(ctx context.Context, identity string) ([]string, error)
}

// Store holds the one Session of this client process.
//
// Refresh is two-phase: the durable identity marker yields an immediate
// provisional session so rendering never waits on the network, then the
// backend's answer replaces it. Every mutation bumps a generation
// counter; an async continuation applies its result only if the
// generation it started from is still current, so a stale response can
// never resurrect a session that was logged out meanwhile.
type Store struct {
	api    API
	state  statestore.Store
	caches *cache.Registry
	logger *zap.Logger

	mu      sync.Mutex
	current models.Session
	gen     uint64

	started atomic.Bool
}

// NewStore wires a session store. The session starts empty.
func NewStore(apiClient API, state statestore.Store, caches *cache.Registry, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		api:    apiClient,
		state:  state,
		caches: caches,
		logger: logger,
	}
}

// Current returns a snapshot of the session.
func (s *Store) Current() models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// CurrentIdentity returns just the identity, for change filtering.
func (s *Store) CurrentIdentity() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Identity
}

// Started reports whether the first refresh has set a session (possibly
// an empty one). Before that the guard shows its loading state.
func (s *Store) Started() bool { return s.started.Load() }

// RefreshSession reads the durable identity marker, provisions a session
// from it synchronously, and confirms it against the backend in the
// background. The provisional session renders instantly; the first
// backend round trip corrects it.
func (s *Store) RefreshSession(ctx context.Context) {
	metrics.Get().SessionRefreshesTotal.Add(ctx, 1)

	marker, ok, err := s.state.Get(ctx, statestore.IdentityMarkerKey)
	if err != nil {
		s.logger.Warn("Identity marker unreadable", zap.Error(err))
	}

	s.mu.Lock()
	if ok && marker != "" {
		s.current = models.Session{
			Identity: marker,
			Role:     models.RoleStandard,
			Phase:    models.PhaseProvisional,
		}
	} else {
		s.current = models.Session{}
	}
	s.gen++
	gen := s.gen
	s.mu.Unlock()
	s.started.Store(true)

	go s.confirm(context.WithoutCancel(ctx), gen)
}

// confirm resolves the authoritative session. It applies nothing when
// another mutation happened since it started.
func (s *Store) confirm(ctx context.Context, gen uint64) {
	ident, err := s.api.CurrentIdentity(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		s.logger.Debug("Discarding stale session confirmation")
		return
	}

	if err != nil || ident == nil {
		if err != nil {
			s.logger.Warn("Session confirmation failed, clearing session", zap.Error(err))
		} else {
			s.logger.Info("No server session, clearing provisional session")
		}
		s.current = models.Session{}
		s.gen++
		return
	}

	s.current = models.Session{
		Identity:         ident.Identity,
		Role:             models.Role(ident.Role),
		PermittedScreens: models.NewScreenSet(ident.PermittedScreens),
		Phase:            models.PhaseConfirmed,
	}
	s.gen++
	s.logger.Info("Session confirmed",
		zap.String("identity", ident.Identity),
		zap.String("role", ident.Role),
	)

	if err := s.state.Set(ctx, statestore.IdentityMarkerKey, ident.Identity); err != nil {
		s.logger.Warn("Identity marker write failed", zap.Error(err))
	}
}

// Login exchanges credentials upstream. On failure the session is left
// untouched and the typed error belongs on the login form. On success
// identity and role are set immediately and a refresh populates the
// permitted-screen set.
func (s *Store) Login(ctx context.Context, identity, secret string) error {
	ident, err := s.api.Login(ctx, identity, secret)
	if err != nil {
		return err
	}

	s.mu.Lock()
	previous := s.current.Identity
	s.current = models.Session{
		Identity: ident.Identity,
		Role:     models.Role(ident.Role),
		Phase:    models.PhaseProvisional,
	}
	s.gen++
	s.mu.Unlock()

	if previous != "" && previous != ident.Identity {
		// Identity switch on a shared device: the outgoing identity's
		// cached data must not survive into the new session.
		if err := s.caches.InvalidateIdentity(previous); err != nil {
			s.logger.Warn("Cache invalidation on identity switch", zap.Error(err))
		}
	}

	if err := s.state.Set(ctx, statestore.IdentityMarkerKey, ident.Identity); err != nil {
		s.logger.Warn("Identity marker write failed", zap.Error(err))
	}

	s.RefreshSession(ctx)
	return nil
}

// Logout is unconditionally terminal: identity-scoped cache is
// invalidated first (with full clear as the fallback), the server logout
// is best-effort, and local state is always cleared no matter what
// failed along the way.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	identity := s.current.Identity
	s.mu.Unlock()

	if identity != "" {
		if err := s.caches.InvalidateIdentity(identity); err != nil {
			// The registry already fell back to a full clear.
			s.logger.Warn("Cache invalidation on logout", zap.Error(err))
		}
	}

	if err := s.api.Logout(ctx); err != nil {
		s.logger.Warn("Server logout failed, proceeding locally", zap.Error(err))
	}

	if err := s.state.Delete(ctx, statestore.IdentityMarkerKey); err != nil {
		s.logger.Warn("Identity marker removal failed", zap.Error(err))
	}

	s.mu.Lock()
	s.current = models.Session{}
	s.gen++
	s.mu.Unlock()
	s.logger.Info("Logged out", zap.String("identity", identity))
}

// SetIdentityFromExternalToken installs the identity delivered by an
// external identity-provider redirect. The redirect carries no previous
// identity to purge by name, so all cache is dropped. The caller follows
// up with RefreshSession to obtain the permitted-screen set.
func (s *Store) SetIdentityFromExternalToken(ctx context.Context, identity string, role models.Role) {
	s.caches.ClearAll()

	s.mu.Lock()
	s.current = models.Session{
		Identity: identity,
		Role:     role,
		Phase:    models.PhaseProvisional,
	}
	s.gen++
	s.mu.Unlock()

	if err := s.state.Set(ctx, statestore.IdentityMarkerKey, identity); err != nil {
		s.logger.Warn("Identity marker write failed", zap.Error(err))
	}
	s.logger.Info("Identity set from external provider", zap.String("identity", identity))
}

// RefreshPermittedScreens re-fetches only the allow-list, after an
// administrator changed it. No-op without an identity.
func (s *Store) RefreshPermittedScreens(ctx context.Context) error {
	s.mu.Lock()
	identity := s.current.Identity
	gen := s.gen
	s.mu.Unlock()
	if identity == "" {
		return nil
	}

	screens, err := s.api.PermittedScreens(ctx, identity)
	if err != nil {
		s.logger.Warn("Permitted screens refresh failed",
			zap.String("identity", identity), zap.Error(err))
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return nil
	}
	s.current.PermittedScreens = models.NewScreenSet(screens)
	s.gen++
	return nil
}
