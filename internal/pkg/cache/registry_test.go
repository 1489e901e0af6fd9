package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFamilySetGet(t *testing.T) {
	f := NewFamily("quotes", time.Minute, false, nil)

	f.Set("ana:AAPL", 42.5)
	v, ok := f.Get("ana:AAPL")
	require.True(t, ok)
	assert.Equal(t, 42.5, v)

	_, ok = f.Get("missing")
	assert.False(t, ok)
}

func TestFamilyPurgeIdentityBySubstring(t *testing.T) {
	f := NewFamily("holdings", time.Minute, true, nil)
	f.Set("holdings:ana", 1)
	f.Set("ana", 2)
	f.Set("holdings:bruno", 3)

	require.NoError(t, f.PurgeIdentity("ana"))

	_, ok := f.Get("holdings:ana")
	assert.False(t, ok)
	_, ok = f.Get("ana")
	assert.False(t, ok)
	_, ok = f.Get("holdings:bruno")
	assert.True(t, ok, "other identity's entry must survive")
}

func TestFamilyPurgeEmptyIdentityIsNoop(t *testing.T) {
	f := NewFamily("holdings", time.Minute, true, nil)
	f.Set("holdings:ana", 1)

	require.NoError(t, f.PurgeIdentity(""))
	assert.Equal(t, 1, f.Size())
}

func TestInvalidateIdentityTargeted(t *testing.T) {
	reg := NewRegistry(nil)
	holdings := reg.NewFamily("holdings", time.Minute, true)
	static := reg.NewFamily("static", time.Minute, false)

	holdings.Set("holdings:ana", 1)
	static.Set("screen-catalog", "v1")
	static.Set("ana:prefs", "dark")

	require.NoError(t, reg.InvalidateIdentity("ana"))

	_, ok := holdings.Get("holdings:ana")
	assert.False(t, ok)
	_, ok = static.Get("ana:prefs")
	assert.False(t, ok, "substring matching runs over non-scoped families too")
	_, ok = static.Get("screen-catalog")
	assert.True(t, ok, "unrelated entries in non-scoped families survive")
}

func TestInvalidateIdentityPurgesScopedFamiliesWholesale(t *testing.T) {
	reg := NewRegistry(nil)
	scoped := reg.NewFamily("holdings", time.Minute, true)

	// Key shape that substring matching cannot associate with the identity.
	scoped.Set("opaque-hash-1", 1)
	scoped.Set("opaque-hash-2", 2)

	require.NoError(t, reg.InvalidateIdentity("ana"))
	assert.Equal(t, 0, scoped.Size())
}

// failingPurger simulates a cache producer whose targeted purge breaks.
type failingPurger struct {
	purgedAll bool
}

func (p *failingPurger) Name() string                 { return "broken" }
func (p *failingPurger) IdentityScoped() bool         { return false }
func (p *failingPurger) PurgeIdentity(_ string) error { return errors.New("backend gone") }
func (p *failingPurger) PurgeAll()                    { p.purgedAll = true }

func TestInvalidateIdentityFallsBackToFullClear(t *testing.T) {
	reg := NewRegistry(nil)
	healthy := reg.NewFamily("static", time.Minute, false)
	healthy.Set("screen-catalog", "v1")

	broken := &failingPurger{}
	reg.Register(broken)

	err := reg.InvalidateIdentity("ana")
	require.Error(t, err)

	assert.True(t, broken.purgedAll, "fallback must clear the failing family")
	_, ok := healthy.Get("screen-catalog")
	assert.False(t, ok, "fallback clears everything, not only the failing family")
}

func TestClearAll(t *testing.T) {
	reg := NewRegistry(nil)
	a := reg.NewFamily("a", time.Minute, false)
	b := reg.NewFamily("b", time.Minute, true)
	a.Set("k", 1)
	b.Set("k", 2)

	reg.ClearAll()

	assert.Equal(t, 0, a.Size())
	assert.Equal(t, 0, b.Size())
}

func TestRegisterReplacesByName(t *testing.T) {
	reg := NewRegistry(nil)
	reg.NewFamily("holdings", time.Minute, true)
	reg.NewFamily("holdings", time.Minute, true)

	assert.Len(t, reg.Families(), 1)
}
