package rpc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cluster1-arrowcolony/arrowhead-go/security"
)

func TestTokenCacheRoundTrip(t *testing.T) {
	c := NewTokenCache(time.Second)

	tok := &security.Token{Raw: "abc", ExpiresAt: time.Now().Add(time.Hour)}
	c.Store("consumer", "provider", "get-car", tok)

	require.Equal(t, tok, c.TokenFor("consumer", "provider", "get-car"))
	require.Nil(t, c.TokenFor("consumer", "provider", "create-car"))
	require.Nil(t, c.TokenFor("consumer", "other", "get-car"))
}

func TestTokenCacheStoreReplaces(t *testing.T) {
	c := NewTokenCache(time.Second)

	old := &security.Token{Raw: "old", ExpiresAt: time.Now().Add(time.Hour)}
	fresh := &security.Token{Raw: "fresh", ExpiresAt: time.Now().Add(2 * time.Hour)}
	c.Store("consumer", "provider", "get-car", old)
	c.Store("consumer", "provider", "get-car", fresh)

	require.Equal(t, "fresh", c.TokenFor("consumer", "provider", "get-car").Raw)
}

func TestTokenCacheExpiryPrunesLazily(t *testing.T) {
	c := NewTokenCache(5 * time.Second)

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	now := base
	c.now = func() time.Time { return now }

	c.Store("consumer", "provider", "get-car", &security.Token{Raw: "abc", ExpiresAt: base.Add(time.Minute)})

	require.NotNil(t, c.TokenFor("consumer", "provider", "get-car"))

	// Inside the skew window the token counts as expired already.
	now = base.Add(time.Minute - 4*time.Second)
	require.Nil(t, c.TokenFor("consumer", "provider", "get-car"))

	// The entry was pruned, not just hidden.
	c.mu.Lock()
	require.Empty(t, c.tokens)
	c.mu.Unlock()
}

func TestTokenCacheDrop(t *testing.T) {
	c := NewTokenCache(time.Second)

	c.Store("consumer", "provider", "get-car", &security.Token{Raw: "abc", ExpiresAt: time.Now().Add(time.Hour)})
	c.Drop("consumer", "provider", "get-car")
	require.Nil(t, c.TokenFor("consumer", "provider", "get-car"))

	// Dropping an absent tuple is a no-op.
	c.Drop("consumer", "provider", "get-car")
}
