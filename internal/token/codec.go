package token

import (
	"fmt"
	"time"

	stderrors "errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hirewire/auth-service/internal/models"
	pkgerrors "github.com/hirewire/auth-service/pkg/errors"
)

const (
	claimSubject   = "sub"
	claimIssuedAt  = "iat"
	claimExpiresAt = "exp"
	claimTokenType = "token_type"
)

// Codec mints and verifies HS256-signed bearer tokens. Access and refresh
// tokens share the signing key and encoding; they differ only in TTL and in
// the token_type claim.
type Codec struct {
	secret []byte
	now    func() time.Time
}

func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret), now: time.Now}
}

// WithClock overrides the codec clock. Used by tests to pin expiry boundaries.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	c.now = now
	return c
}

// Mint signs a token for subject valid for ttl. Extra claims are embedded as
// is, except the reserved ones, which cannot be overridden.
func (c *Codec) Mint(subject string, tokenType models.TokenType, ttl time.Duration, extra map[string]interface{}) (string, error) {
	now := c.now()
	claims := jwt.MapClaims{
		claimSubject:   subject,
		claimIssuedAt:  now.Unix(),
		claimExpiresAt: now.Add(ttl).Unix(),
		claimTokenType: string(tokenType),
	}
	for k, v := range extra {
		if k == claimSubject || k == claimIssuedAt || k == claimExpiresAt || k == claimTokenType {
			continue
		}
		claims[k] = v
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// Verify decodes the token and checks signature and expiry. It does not check
// the token type or subject; that is authorization policy and belongs to the
// caller.
func (c *Codec) Verify(tokenString string) (*models.TokenClaims, error) {
	parsed, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Method.Alg())
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(c.now))
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return nil, pkgerrors.ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrMalformedToken, err)
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, pkgerrors.ErrMalformedToken
	}

	subject, err := mapClaims.GetSubject()
	if err != nil || subject == "" {
		return nil, fmt.Errorf("%w: missing subject", pkgerrors.ErrMalformedToken)
	}
	issuedAt, err := mapClaims.GetIssuedAt()
	if err != nil || issuedAt == nil {
		return nil, fmt.Errorf("%w: missing iat", pkgerrors.ErrMalformedToken)
	}
	expiresAt, err := mapClaims.GetExpirationTime()
	if err != nil || expiresAt == nil {
		return nil, fmt.Errorf("%w: missing exp", pkgerrors.ErrMalformedToken)
	}

	extra := make(map[string]interface{})
	for k, v := range mapClaims {
		switch k {
		case claimSubject, claimIssuedAt, claimExpiresAt, claimTokenType:
		default:
			extra[k] = v
		}
	}

	return &models.TokenClaims{
		Subject:   subject,
		TokenType: extractTokenType(mapClaims),
		IssuedAt:  issuedAt.Time,
		ExpiresAt: expiresAt.Time,
		Extra:     extra,
	}, nil
}

// extractTokenType is the single place the back-compat default lives: tokens
// minted before the token_type claim existed carry no marker and are treated
// as access tokens, never escalated to refresh. Unknown values fall back to
// access for the same reason.
func extractTokenType(claims jwt.MapClaims) models.TokenType {
	raw, ok := claims[claimTokenType].(string)
	if !ok {
		return models.TokenTypeAccess
	}
	if models.TokenType(raw) == models.TokenTypeRefresh {
		return models.TokenTypeRefresh
	}
	return models.TokenTypeAccess
}
