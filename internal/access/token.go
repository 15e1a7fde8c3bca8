// Package access brokers the scoped, time-limited credentials that unlock
// playback of one content item. Tokens are cached in memory per item and
// re-fetched once they near expiry; they are never persisted beyond the
// process lifetime.
package access

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Source records which backend minted the playback credential.
type Source string

const (
	SourceCache     Source = "cache"
	SourceChain     Source = "chain"
	SourceSignedURL Source = "signed-url"
)

// Token is a capability to play or view exactly one content item.
type Token struct {
	ItemID      string    `json:"itemId"`
	Token       string    `json:"token"`
	PlaybackURL string    `json:"playbackUrl,omitempty"`
	EmbedURL    string    `json:"embedUrl,omitempty"`
	ExpiresAt   time.Time `json:"expiresAt"`
	Source      Source    `json:"source"`
}

// Fresh reports whether the token is still safely usable: expiry must be
// further out than the buffer window. A token inside the buffer is treated
// as stale and re-fetched rather than risked mid-playback.
func (t Token) Fresh(now time.Time, buffer time.Duration) bool {
	return t.ExpiresAt.Sub(now) > buffer
}

// tokenExpiry recovers an expiry for tokens whose payload omits expiresAt.
// Many playback tokens are JWTs; the exp claim is authoritative even
// without verifying the signature (the content server verifies, we only
// need the deadline). Falls back to the configured default TTL.
func tokenExpiry(token Token, now time.Time, defaultTTL time.Duration) time.Time {
	if !token.ExpiresAt.IsZero() {
		return token.ExpiresAt
	}
	if exp, ok := jwtExpiry(token.Token); ok {
		return exp
	}
	return now.Add(defaultTTL)
}

func jwtExpiry(raw string) (time.Time, bool) {
	parser := jwt.NewParser()
	parsed, _, err := parser.ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
