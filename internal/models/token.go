package models

import "time"

// TokenType distinguishes short-lived access tokens from the long-lived
// refresh tokens tracked server-side.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// TokenClaims is the decoded view of a signed bearer token. It is never
// persisted; it is rebuilt by the codec on every Verify.
type TokenClaims struct {
	Subject   string
	TokenType TokenType
	IssuedAt  time.Time
	ExpiresAt time.Time
	Extra     map[string]interface{}
}

// IsAccessToken reports whether the claims may be used where an access token
// is required. Tokens minted before the type claim existed carry no type and
// are only ever treated as access tokens.
func (c *TokenClaims) IsAccessToken() bool {
	return c.TokenType == TokenTypeAccess
}

// IsRefreshToken reports whether the claims may be used on the refresh path.
// The untyped back-compat default never qualifies.
func (c *TokenClaims) IsRefreshToken() bool {
	return c.TokenType == TokenTypeRefresh
}
