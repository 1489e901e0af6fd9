package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmcunha/folioview/internal/api"
	"github.com/fmcunha/folioview/internal/app/domain/recovery"
	"github.com/fmcunha/folioview/internal/app/models"
	"github.com/fmcunha/folioview/internal/pkg/cache"
	"github.com/fmcunha/folioview/internal/pkg/statestore"
)

// fakeAPI scripts the upstream answers. The confirm gate, when set,
// holds CurrentIdentity in flight so tests can interleave mutations.
type fakeAPI struct {
	mu sync.Mutex

	loginIdentity *api.Identity
	loginErr      error

	currentIdentity *api.Identity
	currentErr      error
	confirmGate     chan struct{}

	screens    []string
	screensErr error

	logoutErr   error
	logoutCalls int
}

func (f *fakeAPI) Login(_ context.Context, _, _ string) (*api.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginIdentity, f.loginErr
}

func (f *fakeAPI) Logout(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logoutCalls++
	return f.logoutErr
}

func (f *fakeAPI) CurrentIdentity(_ context.Context) (*api.Identity, error) {
	f.mu.Lock()
	gate := f.confirmGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.currentIdentity, f.currentErr
}

func (f *fakeAPI) PermittedScreens(_ context.Context, _ string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.screens, f.screensErr
}

func (f *fakeAPI) setCurrent(ident *api.Identity, err error) {
	f.mu.Lock()
	f.currentIdentity = ident
	f.currentErr = err
	f.mu.Unlock()
}

func newTestStore(t *testing.T, upstream *fakeAPI) (*Store, statestore.Store) {
	t.Helper()
	state := statestore.NewMemory()
	return NewStore(upstream, state, cache.NewRegistry(nil), nil), state
}

func waitForPhase(t *testing.T, s *Store, phase models.SessionPhase) models.Session {
	t.Helper()
	require.Eventually(t, func() bool {
		return s.Current().Phase == phase
	}, 2*time.Second, 5*time.Millisecond)
	return s.Current()
}

func TestRefreshWithoutMarkerYieldsEmptySession(t *testing.T) {
	upstream := &fakeAPI{}
	s, _ := newTestStore(t, upstream)

	s.RefreshSession(context.Background())

	assert.True(t, s.Started())
	sess := s.Current()
	assert.False(t, sess.IsAuthenticated())
	assert.Equal(t, models.PhaseNone, sess.Phase)
}

func TestRefreshProvisionalThenConfirmed(t *testing.T) {
	ctx := context.Background()
	upstream := &fakeAPI{confirmGate: make(chan struct{})}
	upstream.setCurrent(&api.Identity{
		Identity:         "ana",
		Role:             "standard",
		PermittedScreens: []string{"wallet"},
	}, nil)

	s, state := newTestStore(t, upstream)
	require.NoError(t, state.Set(ctx, statestore.IdentityMarkerKey, "ana"))

	s.RefreshSession(ctx)

	// Provisional session is available immediately, before the backend
	// has answered.
	sess := s.Current()
	assert.Equal(t, "ana", sess.Identity)
	assert.Equal(t, models.PhaseProvisional, sess.Phase)
	assert.True(t, sess.PermittedScreens.Unrestricted(), "allow-list unknown until confirmed")

	close(upstream.confirmGate)
	sess = waitForPhase(t, s, models.PhaseConfirmed)
	assert.Equal(t, "ana", sess.Identity)
	assert.True(t, sess.PermittedScreens.Has("wallet"))
	assert.False(t, sess.PermittedScreens.Unrestricted())
}

func TestConfirmClearsSessionWhenServerSaysNo(t *testing.T) {
	ctx := context.Background()
	upstream := &fakeAPI{} // CurrentIdentity answers (nil, nil)
	s, state := newTestStore(t, upstream)
	require.NoError(t, state.Set(ctx, statestore.IdentityMarkerKey, "ana"))

	s.RefreshSession(ctx)

	require.Eventually(t, func() bool {
		return !s.Current().IsAuthenticated()
	}, 2*time.Second, 5*time.Millisecond)
}

func TestConfirmErrorClearsProvisionalSession(t *testing.T) {
	ctx := context.Background()
	upstream := &fakeAPI{}
	upstream.setCurrent(nil, errors.New("backend down"))
	s, state := newTestStore(t, upstream)
	require.NoError(t, state.Set(ctx, statestore.IdentityMarkerKey, "ana"))

	s.RefreshSession(ctx)

	require.Eventually(t, func() bool {
		return !s.Current().IsAuthenticated()
	}, 2*time.Second, 5*time.Millisecond)
}

func TestStaleConfirmationDiscardedAfterLogout(t *testing.T) {
	ctx := context.Background()
	upstream := &fakeAPI{confirmGate: make(chan struct{})}
	upstream.setCurrent(&api.Identity{Identity: "ana", Role: "standard"}, nil)

	s, state := newTestStore(t, upstream)
	require.NoError(t, state.Set(ctx, statestore.IdentityMarkerKey, "ana"))

	s.RefreshSession(ctx)
	require.Equal(t, models.PhaseProvisional, s.Current().Phase)

	// Logout lands while the confirmation is still in flight.
	s.Logout(ctx)
	assert.False(t, s.Current().IsAuthenticated())

	close(upstream.confirmGate)

	// The late answer must not resurrect the session.
	time.Sleep(100 * time.Millisecond)
	assert.False(t, s.Current().IsAuthenticated(), "stale confirmation applied after logout")
}

func TestLoginFailureLeavesSessionUntouched(t *testing.T) {
	ctx := context.Background()
	upstream := &fakeAPI{loginErr: models.ErrUnauthenticated}
	upstream.setCurrent(&api.Identity{Identity: "ana", Role: "standard"}, nil)

	s, state := newTestStore(t, upstream)
	require.NoError(t, state.Set(ctx, statestore.IdentityMarkerKey, "ana"))
	s.RefreshSession(ctx)
	waitForPhase(t, s, models.PhaseConfirmed)

	err := s.Login(ctx, "ana", "wrong")
	require.ErrorIs(t, err, models.ErrUnauthenticated)

	sess := s.Current()
	assert.Equal(t, "ana", sess.Identity)
	assert.Equal(t, models.PhaseConfirmed, sess.Phase)
}

func TestLoginWritesMarkerAndConfirms(t *testing.T) {
	ctx := context.Background()
	upstream := &fakeAPI{
		loginIdentity: &api.Identity{Identity: "ana", Role: "standard"},
	}
	upstream.setCurrent(&api.Identity{Identity: "ana", Role: "standard"}, nil)

	s, state := newTestStore(t, upstream)
	require.NoError(t, s.Login(ctx, "ana", "pw"))

	marker, ok, err := state.Get(ctx, statestore.IdentityMarkerKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ana", marker)

	waitForPhase(t, s, models.PhaseConfirmed)
}

func TestIdentitySwitchInvalidatesPreviousIdentityCache(t *testing.T) {
	ctx := context.Background()
	upstream := &fakeAPI{
		loginIdentity: &api.Identity{Identity: "bruno", Role: "standard"},
	}
	upstream.setCurrent(&api.Identity{Identity: "ana", Role: "standard"}, nil)

	state := statestore.NewMemory()
	caches := cache.NewRegistry(nil)
	holdings := caches.NewFamily("holdings", time.Minute, true)
	s := NewStore(upstream, state, caches, nil)

	// ana is signed in and has cached data.
	require.NoError(t, state.Set(ctx, statestore.IdentityMarkerKey, "ana"))
	s.RefreshSession(ctx)
	waitForPhase(t, s, models.PhaseConfirmed)
	holdings.Set("holdings:ana", "positions")

	upstream.setCurrent(&api.Identity{Identity: "bruno", Role: "standard"}, nil)
	require.NoError(t, s.Login(ctx, "bruno", "pw"))

	_, ok := holdings.Get("holdings:ana")
	assert.False(t, ok, "previous identity's cache must not survive the switch")
}

func TestLogoutAlwaysTerminal(t *testing.T) {
	ctx := context.Background()
	upstream := &fakeAPI{logoutErr: errors.New("server unreachable")}
	upstream.setCurrent(&api.Identity{Identity: "ana", Role: "standard"}, nil)

	s, state := newTestStore(t, upstream)
	require.NoError(t, state.Set(ctx, statestore.IdentityMarkerKey, "ana"))
	s.RefreshSession(ctx)
	waitForPhase(t, s, models.PhaseConfirmed)

	s.Logout(ctx)

	assert.False(t, s.Current().IsAuthenticated())
	assert.Equal(t, 1, upstream.logoutCalls)
	_, ok, err := state.Get(ctx, statestore.IdentityMarkerKey)
	require.NoError(t, err)
	assert.False(t, ok, "marker removed even when the server logout failed")
}

func TestLogoutInvalidatesCacheBeforeClearingSession(t *testing.T) {
	ctx := context.Background()
	upstream := &fakeAPI{}
	upstream.setCurrent(&api.Identity{Identity: "ana", Role: "standard"}, nil)

	state := statestore.NewMemory()
	caches := cache.NewRegistry(nil)
	holdings := caches.NewFamily("holdings", time.Minute, true)
	s := NewStore(upstream, state, caches, nil)

	require.NoError(t, state.Set(ctx, statestore.IdentityMarkerKey, "ana"))
	s.RefreshSession(ctx)
	waitForPhase(t, s, models.PhaseConfirmed)
	holdings.Set("holdings:ana", "positions")

	s.Logout(ctx)

	_, ok := holdings.Get("holdings:ana")
	assert.False(t, ok)
}

func TestLogoutPurgesRecoveryRecord(t *testing.T) {
	ctx := context.Background()
	upstream := &fakeAPI{}
	upstream.setCurrent(&api.Identity{Identity: "ana", Role: "standard"}, nil)

	state := statestore.NewMemory()
	caches := cache.NewRegistry(nil)
	recoveryCache := recovery.NewCache(state, nil)
	caches.Register(recoveryCache)
	s := NewStore(upstream, state, caches, nil)

	require.NoError(t, state.Set(ctx, statestore.IdentityMarkerKey, "ana"))
	s.RefreshSession(ctx)
	waitForPhase(t, s, models.PhaseConfirmed)
	recoveryCache.Write(ctx, "ana", true)

	s.Logout(ctx)

	_, found, err := state.Get(ctx, statestore.RecoveryKey("ana"))
	require.NoError(t, err)
	assert.False(t, found, "recovery record must not survive logout")
}

func TestSetIdentityFromExternalToken(t *testing.T) {
	ctx := context.Background()
	upstream := &fakeAPI{}
	state := statestore.NewMemory()
	caches := cache.NewRegistry(nil)
	stale := caches.NewFamily("holdings", time.Minute, true)
	stale.Set("holdings:old", "junk")
	s := NewStore(upstream, state, caches, nil)

	s.SetIdentityFromExternalToken(ctx, "carla", models.RoleAdmin)

	sess := s.Current()
	assert.Equal(t, "carla", sess.Identity)
	assert.True(t, sess.IsAdmin())
	assert.Equal(t, models.PhaseProvisional, sess.Phase)

	_, ok := stale.Get("holdings:old")
	assert.False(t, ok, "external sign-in drops all prior cache")

	marker, ok, err := state.Get(ctx, statestore.IdentityMarkerKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "carla", marker)
}

func TestRefreshPermittedScreens(t *testing.T) {
	ctx := context.Background()
	upstream := &fakeAPI{screens: []string{"wallet"}}
	upstream.setCurrent(&api.Identity{Identity: "ana", Role: "standard"}, nil)

	s, state := newTestStore(t, upstream)
	require.NoError(t, state.Set(ctx, statestore.IdentityMarkerKey, "ana"))
	s.RefreshSession(ctx)
	waitForPhase(t, s, models.PhaseConfirmed)

	require.NoError(t, s.RefreshPermittedScreens(ctx))
	sess := s.Current()
	assert.True(t, sess.PermittedScreens.Has("wallet"))
	assert.False(t, sess.PermittedScreens.Has("admin"))
}

func TestRefreshPermittedScreensWithoutIdentityIsNoop(t *testing.T) {
	upstream := &fakeAPI{screensErr: errors.New("must not be called")}
	s, _ := newTestStore(t, upstream)

	assert.NoError(t, s.RefreshPermittedScreens(context.Background()))
}
