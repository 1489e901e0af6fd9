// Package recovery caches whether an identity completed the
// security-recovery setup step, so the backend is not asked again on
// every navigation.
package recovery

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fmcunha/folioview/internal/pkg/statestore"
)

// VerificationTTL bounds how long a verification answer is trusted.
const VerificationTTL = 5 * time.Minute

// FamilyName registers the cache with the invalidation registry.
const FamilyName = "recovery_status"

type persistedRecord struct {
	HasRecoveryQuestion bool  `json:"hasRecoveryQuestion"`
	CheckedAt           int64 `json:"checkedAt"`
}

// Cache is the time-boxed store of verification answers, one record per
// identity, persisted in the shared state store. Expired records are
// removed on read; there is no background sweep.
type Cache struct {
	state  statestore.Store
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	written map[string]struct{}
}

// NewCache creates a verification cache over the shared state store.
func NewCache(state statestore.Store, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		state:   state,
		logger:  logger,
		now:     time.Now,
		written: make(map[string]struct{}),
	}
}

// Read returns the cached answer for identity, or ok=false when the
// record is missing, unreadable or older than the TTL. Stale records are
// deleted immediately.
func (c *Cache) Read(ctx context.Context, identity string) (value, ok bool) {
	raw, found, err := c.state.Get(ctx, statestore.RecoveryKey(identity))
	if err != nil {
		c.logger.Warn("Verification cache read failed", zap.Error(err))
		return false, false
	}
	if !found {
		return false, false
	}

	var rec persistedRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		c.logger.Warn("Dropping unreadable verification record",
			zap.String("identity", identity), zap.Error(err))
		_ = c.state.Delete(ctx, statestore.RecoveryKey(identity))
		return false, false
	}

	if c.now().Sub(time.Unix(rec.CheckedAt, 0)) >= VerificationTTL {
		_ = c.state.Delete(ctx, statestore.RecoveryKey(identity))
		return false, false
	}
	return rec.HasRecoveryQuestion, true
}

// Write upserts the answer for identity with the current timestamp.
func (c *Cache) Write(ctx context.Context, identity string, hasRecoveryQuestion bool) {
	rec := persistedRecord{
		HasRecoveryQuestion: hasRecoveryQuestion,
		CheckedAt:           c.now().Unix(),
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		c.logger.Error("Verification record encode failed", zap.Error(err))
		return
	}
	if err := c.state.Set(ctx, statestore.RecoveryKey(identity), string(payload)); err != nil {
		c.logger.Warn("Verification cache write failed",
			zap.String("identity", identity), zap.Error(err))
		return
	}
	c.mu.Lock()
	c.written[identity] = struct{}{}
	c.mu.Unlock()
}

// Invalidate removes the record for identity. Called when the identity
// updates its recovery question and on logout.
func (c *Cache) Invalidate(ctx context.Context, identity string) {
	if err := c.state.Delete(ctx, statestore.RecoveryKey(identity)); err != nil {
		c.logger.Warn("Verification cache invalidate failed",
			zap.String("identity", identity), zap.Error(err))
	}
	c.mu.Lock()
	delete(c.written, identity)
	c.mu.Unlock()
}

// Name, IdentityScoped, PurgeIdentity and PurgeAll implement the cache
// registry's Purger contract, so logout clears recovery records with the
// rest of the identity-scoped families.

func (c *Cache) Name() string         { return FamilyName }
func (c *Cache) IdentityScoped() bool { return true }

func (c *Cache) PurgeIdentity(identity string) error {
	return c.state.Delete(context.Background(), statestore.RecoveryKey(identity))
}

// PurgeAll removes every record this process wrote. Records created by
// other processes expire through the TTL.
func (c *Cache) PurgeAll() {
	c.mu.Lock()
	identities := make([]string, 0, len(c.written))
	for id := range c.written {
		identities = append(identities, id)
	}
	c.written = make(map[string]struct{})
	c.mu.Unlock()

	for _, id := range identities {
		_ = c.state.Delete(context.Background(), statestore.RecoveryKey(id))
	}
}

// SetClock overrides the cache clock. Test hook.
func (c *Cache) SetClock(now func() time.Time) { c.now = now }
