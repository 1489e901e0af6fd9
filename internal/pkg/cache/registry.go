package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fmcunha/folioview/internal/app/models"
	"github.com/fmcunha/folioview/internal/app/observability/metrics"
)

// Purger is implemented by every cache producer in the process. Producers
// of per-identity data must report IdentityScoped()=true; the registry
// purges those wholesale on logout in addition to key matching, so an
// evolving key shape can never leak one identity's data to the next.
type Purger interface {
	Name() string
	IdentityScoped() bool
	PurgeIdentity(identity string) error
	PurgeAll()
}

// Registry tracks every cache family in the process and owns the
// two-tier identity invalidation used on logout and identity switch:
// targeted removal first, full unconditional clear as the fallback when
// any targeted step fails.
type Registry struct {
	mu       sync.RWMutex
	families map[string]Purger
	logger   *zap.Logger
}

// NewRegistry creates an empty cache registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		families: make(map[string]Purger),
		logger:   logger,
	}
}

// Register adds a cache producer. Registering twice under one name
// replaces the previous producer.
func (r *Registry) Register(p Purger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.families[p.Name()] = p
	r.logger.Debug("Cache family registered",
		zap.String("cache", p.Name()),
		zap.Bool("identity_scoped", p.IdentityScoped()),
	)
}

// NewFamily creates and registers a Family in one step.
func (r *Registry) NewFamily(name string, ttl time.Duration, identityScoped bool) *Family {
	f := NewFamily(name, ttl, identityScoped, r.logger)
	r.Register(f)
	return f
}

// InvalidateIdentity removes every cached artifact scoped to the given
// identity. Substring matching runs over all families, then the declared
// identity-scoped families are purged wholesale. Any failure escalates to
// a full clear of everything; partial residue is never left behind.
func (r *Registry) InvalidateIdentity(identity string) error {
	r.mu.RLock()
	families := make([]Purger, 0, len(r.families))
	for _, f := range r.families {
		families = append(families, f)
	}
	r.mu.RUnlock()

	var failed error
	for _, f := range families {
		if err := f.PurgeIdentity(identity); err != nil {
			r.logger.Warn("Targeted cache purge failed",
				zap.String("cache", f.Name()),
				zap.String("identity", identity),
				zap.Error(err),
			)
			failed = err
		}
	}

	for _, f := range families {
		if f.IdentityScoped() {
			f.PurgeAll()
		}
	}

	if failed != nil {
		r.logger.Warn("Falling back to full cache clear", zap.Error(failed))
		r.ClearAll()
		metrics.Get().CacheInvalidationsTotal.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("outcome", "full_clear")))
		return fmt.Errorf("%w: %v", models.ErrCacheInvalidation, failed)
	}
	metrics.Get().CacheInvalidationsTotal.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("outcome", "targeted")))
	return nil
}

// ClearAll unconditionally drops every entry in every family.
func (r *Registry) ClearAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, f := range r.families {
		f.PurgeAll()
	}
	r.logger.Info("All caches cleared", zap.Int("families", len(r.families)))
}

// Families returns the registered family names, for diagnostics.
func (r *Registry) Families() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.families))
	for name := range r.families {
		names = append(names, name)
	}
	return names
}
