// Package crosstab keeps this window in step with session changes made
// by other windows of the same profile.
package crosstab

import (
	"context"

	"go.uber.org/zap"

	"github.com/fmcunha/folioview/internal/pkg/statestore"
)

// Refresher is the slice of the session store the syncer needs.
type Refresher interface {
	RefreshSession(ctx context.Context)
	CurrentIdentity() string
}

// Sync watches the shared state store for identity-marker changes and
// refreshes the session when another window logged in or out. Changes
// to unrelated keys, and notifications that merely echo the identity
// already held, are ignored. A window must not re-fetch because of its
// own write.
type Sync struct {
	state    statestore.Store
	sessions Refresher
	logger   *zap.Logger
}

// New wires a cross-window syncer.
func New(state statestore.Store, sessions Refresher, logger *zap.Logger) *Sync {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sync{state: state, sessions: sessions, logger: logger}
}

// Run consumes change events until the context ends. Call in its own
// goroutine.
func (s *Sync) Run(ctx context.Context) error {
	events, err := s.state.Watch(ctx)
	if err != nil {
		return err
	}

	for ev := range events {
		s.handle(ctx, ev)
	}
	return nil
}

func (s *Sync) handle(ctx context.Context, ev statestore.Event) {
	if ev.Key != statestore.IdentityMarkerKey {
		return
	}
	if ev.Value == s.sessions.CurrentIdentity() {
		return
	}

	s.logger.Info("Identity changed in another window, refreshing session",
		zap.String("identity", ev.Value),
	)
	s.sessions.RefreshSession(ctx)
}
