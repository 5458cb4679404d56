package rpc

import (
	"sync"
	"time"

	"github.com/cluster1-arrowcolony/arrowhead-go/security"
)

type tokenKey struct {
	consumer string
	provider string
	service  string
}

// TokenCache stores bearer tokens that arrived embedded in orchestration
// results, keyed by the (consumer, provider, service) tuple. It never
// contacts an authorization endpoint itself; a missing or expired token
// signals the caller that a fresh resolve is needed. Expired entries are
// pruned lazily on access.
type TokenCache struct {
	skew time.Duration

	mu     sync.Mutex
	tokens map[tokenKey]*security.Token

	now func() time.Time
}

// NewTokenCache builds an empty cache with the given expiry skew.
func NewTokenCache(skew time.Duration) *TokenCache {
	return &TokenCache{
		skew:   skew,
		tokens: make(map[tokenKey]*security.Token),
		now:    time.Now,
	}
}

// Store replaces the token for a tuple wholesale.
func (c *TokenCache) Store(consumer, provider, service string, tok *security.Token) {
	if tok == nil {
		return
	}
	c.mu.Lock()
	c.tokens[tokenKey{consumer, provider, service}] = tok
	c.mu.Unlock()
}

// TokenFor returns the cached token for a tuple while it is still valid,
// or nil when the caller must re-resolve to obtain a fresh one.
func (c *TokenCache) TokenFor(consumer, provider, service string) *security.Token {
	key := tokenKey{consumer, provider, service}

	c.mu.Lock()
	defer c.mu.Unlock()

	tok, ok := c.tokens[key]
	if !ok {
		return nil
	}
	if !tok.ValidFor(c.now(), c.skew) {
		delete(c.tokens, key)
		return nil
	}
	return tok
}

// Drop removes the token for a tuple, regardless of validity.
func (c *TokenCache) Drop(consumer, provider, service string) {
	c.mu.Lock()
	delete(c.tokens, tokenKey{consumer, provider, service})
	c.mu.Unlock()
}
