package security

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token is a bearer credential for one consumer→provider→service tuple.
// The raw string is what goes on the wire; issuer, audience and expiry are
// extracted for cache bookkeeping. The provider side of the call verifies
// the signature; the consumer only needs the expiry to know when to stop
// reusing the token.
type Token struct {
	Raw       string
	Issuer    string
	Audience  []string
	ExpiresAt time.Time
}

// ParseToken extracts the registered claims from a compact JWT without
// verifying its signature. Tokens with no exp claim never expire from the
// consumer's point of view (ExpiresAt stays zero).
func ParseToken(raw string) (*Token, error) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	tok := &Token{Raw: raw}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		tok.ExpiresAt = exp.Time
	}
	if iss, err := claims.GetIssuer(); err == nil {
		tok.Issuer = iss
	}
	if aud, err := claims.GetAudience(); err == nil {
		tok.Audience = aud
	}

	return tok, nil
}

// ValidFor reports whether the token is still usable at the given instant,
// keeping a safety skew before the real expiry.
func (t *Token) ValidFor(now time.Time, skew time.Duration) bool {
	if t == nil || t.Raw == "" {
		return false
	}
	if t.ExpiresAt.IsZero() {
		return true
	}
	return now.Before(t.ExpiresAt.Add(-skew))
}
