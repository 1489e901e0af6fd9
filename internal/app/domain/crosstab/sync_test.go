package crosstab

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmcunha/folioview/internal/pkg/statestore"
)

type fakeRefresher struct {
	identity  atomic.Value
	refreshes atomic.Int32
}

func newFakeRefresher(identity string) *fakeRefresher {
	f := &fakeRefresher{}
	f.identity.Store(identity)
	return f
}

func (f *fakeRefresher) RefreshSession(_ context.Context) { f.refreshes.Add(1) }
func (f *fakeRefresher) CurrentIdentity() string          { return f.identity.Load().(string) }

func runSync(t *testing.T, state statestore.Store, sessions *fakeRefresher) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	s := New(state, sessions, nil)
	go func() { _ = s.Run(ctx) }()
	// Give Run a moment to register its watcher.
	time.Sleep(20 * time.Millisecond)
	return cancel
}

func TestIdentityChangeTriggersRefresh(t *testing.T) {
	state := statestore.NewMemory()
	sessions := newFakeRefresher("ana")
	cancel := runSync(t, state, sessions)
	defer cancel()

	require.NoError(t, state.Set(context.Background(), statestore.IdentityMarkerKey, "bruno"))

	require.Eventually(t, func() bool {
		return sessions.refreshes.Load() == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestMarkerRemovalTriggersRefresh(t *testing.T) {
	ctx := context.Background()
	state := statestore.NewMemory()
	require.NoError(t, state.Set(ctx, statestore.IdentityMarkerKey, "ana"))

	sessions := newFakeRefresher("ana")
	cancel := runSync(t, state, sessions)
	defer cancel()

	require.NoError(t, state.Delete(ctx, statestore.IdentityMarkerKey))

	require.Eventually(t, func() bool {
		return sessions.refreshes.Load() == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestEchoOfOwnIdentityIgnored(t *testing.T) {
	state := statestore.NewMemory()
	sessions := newFakeRefresher("ana")
	cancel := runSync(t, state, sessions)
	defer cancel()

	require.NoError(t, state.Set(context.Background(), statestore.IdentityMarkerKey, "ana"))

	time.Sleep(100 * time.Millisecond)
	assert.EqualValues(t, 0, sessions.refreshes.Load(), "no refresh for the identity already held")
}

func TestUnrelatedKeysIgnored(t *testing.T) {
	state := statestore.NewMemory()
	sessions := newFakeRefresher("ana")
	cancel := runSync(t, state, sessions)
	defer cancel()

	require.NoError(t, state.Set(context.Background(), statestore.RecoveryKey("bruno"), "{}"))

	time.Sleep(100 * time.Millisecond)
	assert.EqualValues(t, 0, sessions.refreshes.Load())
}
