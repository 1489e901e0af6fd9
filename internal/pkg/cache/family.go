package cache

import (
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Family is one named cache. Families that hold per-identity data must be
// created with identityScoped=true so the registry can purge them on
// logout even when key-substring matching misses an entry.
type Family struct {
	name           string
	identityScoped bool
	items          *gocache.Cache
	logger         *zap.Logger
}

// NewFamily creates a cache family with the given default TTL.
func NewFamily(name string, ttl time.Duration, identityScoped bool, logger *zap.Logger) *Family {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Family{
		name:           name,
		identityScoped: identityScoped,
		items:          gocache.New(ttl, 2*ttl),
		logger:         logger,
	}
}

func (f *Family) Name() string         { return f.name }
func (f *Family) IdentityScoped() bool { return f.identityScoped }

// Set stores a value under key with the family default TTL.
func (f *Family) Set(key string, value any) {
	f.items.Set(key, value, gocache.DefaultExpiration)
	f.logger.Debug("Cache set", zap.String("cache", f.name), zap.String("key", key))
}

// Get retrieves a value if present and not expired.
func (f *Family) Get(key string) (any, bool) {
	v, ok := f.items.Get(key)
	if !ok {
		f.logger.Debug("Cache miss", zap.String("cache", f.name), zap.String("key", key))
	}
	return v, ok
}

// Delete removes one key.
func (f *Family) Delete(key string) {
	f.items.Delete(key)
}

// PurgeIdentity removes every entry whose key embeds the identity, by
// exact match or substring containment.
func (f *Family) PurgeIdentity(identity string) error {
	if identity == "" {
		return nil
	}
	removed := 0
	for key := range f.items.Items() {
		if key == identity || strings.Contains(key, identity) {
			f.items.Delete(key)
			removed++
		}
	}
	if removed > 0 {
		f.logger.Debug("Cache identity purge",
			zap.String("cache", f.name),
			zap.Int("removed", removed),
		)
	}
	return nil
}

// PurgeAll drops every entry in the family.
func (f *Family) PurgeAll() {
	f.items.Flush()
	f.logger.Info("Cache cleared", zap.String("cache", f.name))
}

// Size returns the number of live entries.
func (f *Family) Size() int { return f.items.ItemCount() }
