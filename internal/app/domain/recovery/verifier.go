package recovery

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fmcunha/folioview/internal/app/observability/metrics"
)

// Checker is the slice of the folio API the verifier needs.
type Checker interface {
	VerifyRecoverySetup(ctx context.Context, identity string) (bool, error)
}

// SessionIdentity reports which identity the process currently holds.
// Empty when signed out.
type SessionIdentity interface {
	CurrentIdentity() string
}

// Verifier answers "has this identity configured recovery?" from cache
// when fresh, otherwise from the backend. Concurrent callers for the
// same identity share a single outbound request; a caller arriving while
// a check is in flight waits for that result instead of issuing another.
type Verifier struct {
	cache    *Cache
	api      Checker
	sessions SessionIdentity
	group    singleflight.Group
	logger   *zap.Logger
}

// NewVerifier wires the verifier.
func NewVerifier(cache *Cache, api Checker, sessions SessionIdentity, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{cache: cache, api: api, sessions: sessions, logger: logger}
}

// Check never fails: when the backend is unreachable it records and
// returns true, the safer assumption, so a user who might already be
// protected is not forced into a redirect loop. The fail-safe answer is
// served until TTL expiry or explicit invalidation.
func (v *Verifier) Check(ctx context.Context, identity string) bool {
	if value, ok := v.cache.Read(ctx, identity); ok {
		return value
	}

	result, _, _ := v.group.Do(identity, func() (any, error) {
		// A waiter may have queued behind a check that just finished.
		if value, ok := v.cache.Read(ctx, identity); ok {
			return value, nil
		}

		has, err := v.api.VerifyRecoverySetup(ctx, identity)
		outcome := "ok"
		if err != nil {
			v.logger.Warn("Recovery verification unavailable, assuming configured",
				zap.String("identity", identity),
				zap.Error(err),
			)
			has = true
			outcome = "failsafe"
			metrics.Get().VerificationFailsafeTotal.Add(ctx, 1)
		}
		metrics.Get().VerificationChecksTotal.Add(ctx, 1,
			metric.WithAttributes(attribute.String("outcome", outcome)))

		// The session may have changed hands while the request was in
		// flight. Caching then would resurrect a record for an identity
		// that logout already purged.
		if v.sessions.CurrentIdentity() != identity {
			v.logger.Debug("Discarding verification result, identity no longer held",
				zap.String("identity", identity))
			return has, nil
		}
		v.cache.Write(ctx, identity, has)
		return has, nil
	})

	return result.(bool)
}
