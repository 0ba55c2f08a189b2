package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hirewire/auth-service/internal/models"
	pkgerrors "github.com/hirewire/auth-service/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_MintAndVerify(t *testing.T) {
	now := time.Unix(1700000000, 0)
	codec := NewCodec("test-secret").WithClock(func() time.Time { return now })

	signed, err := codec.Mint("a@b.com", models.TokenTypeAccess, time.Minute, map[string]interface{}{
		"role": "employer",
	})
	require.NoError(t, err)
	require.NotEmpty(t, signed)

	claims, err := codec.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", claims.Subject)
	assert.Equal(t, models.TokenTypeAccess, claims.TokenType)
	assert.Equal(t, now.Unix(), claims.IssuedAt.Unix())
	assert.Equal(t, now.Add(time.Minute).Unix(), claims.ExpiresAt.Unix())
	assert.Equal(t, "employer", claims.Extra["role"])
	assert.True(t, claims.IsAccessToken())
	assert.False(t, claims.IsRefreshToken())
}

func TestCodec_ExpiryBoundary(t *testing.T) {
	mintedAt := time.Unix(1700000000, 0)
	current := mintedAt
	codec := NewCodec("test-secret").WithClock(func() time.Time { return current })

	ttl := 60 * time.Second
	signed, err := codec.Mint("a@b.com", models.TokenTypeAccess, ttl, nil)
	require.NoError(t, err)

	t.Run("valid just before expiry", func(t *testing.T) {
		current = mintedAt.Add(ttl - time.Second)
		_, err := codec.Verify(signed)
		assert.NoError(t, err)
	})

	t.Run("expired at exactly ttl", func(t *testing.T) {
		current = mintedAt.Add(ttl)
		_, err := codec.Verify(signed)
		assert.ErrorIs(t, err, pkgerrors.ErrExpiredToken)
	})

	t.Run("expired after ttl", func(t *testing.T) {
		current = mintedAt.Add(ttl + time.Hour)
		_, err := codec.Verify(signed)
		assert.ErrorIs(t, err, pkgerrors.ErrExpiredToken)
	})
}

func TestCodec_RejectsTamperedToken(t *testing.T) {
	codec := NewCodec("test-secret")
	signed, err := codec.Mint("a@b.com", models.TokenTypeAccess, time.Minute, nil)
	require.NoError(t, err)

	tampered := signed[:len(signed)-2] + "xx"
	_, err = codec.Verify(tampered)
	assert.ErrorIs(t, err, pkgerrors.ErrMalformedToken)
}

func TestCodec_RejectsWrongKey(t *testing.T) {
	signed, err := NewCodec("secret-one").Mint("a@b.com", models.TokenTypeAccess, time.Minute, nil)
	require.NoError(t, err)

	_, err = NewCodec("secret-two").Verify(signed)
	assert.ErrorIs(t, err, pkgerrors.ErrMalformedToken)
}

func TestCodec_RejectsGarbage(t *testing.T) {
	_, err := NewCodec("test-secret").Verify("not-a-token")
	assert.ErrorIs(t, err, pkgerrors.ErrMalformedToken)
}

// Tokens minted before the token_type claim existed must always classify as
// access tokens, never refresh.
func TestCodec_UntypedTokenDefaultsToAccess(t *testing.T) {
	codec := NewCodec("test-secret")

	legacy := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "a@b.com",
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Minute).Unix(),
	})
	signed, err := legacy.SignedString(codec.secret)
	require.NoError(t, err)

	claims, err := codec.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, models.TokenTypeAccess, claims.TokenType)
	assert.True(t, claims.IsAccessToken())
	assert.False(t, claims.IsRefreshToken())
}

func TestCodec_UnknownTypeValueDefaultsToAccess(t *testing.T) {
	codec := NewCodec("test-secret")

	weird := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":        "a@b.com",
		"iat":        time.Now().Unix(),
		"exp":        time.Now().Add(time.Minute).Unix(),
		"token_type": "superuser",
	})
	signed, err := weird.SignedString(codec.secret)
	require.NoError(t, err)

	claims, err := codec.Verify(signed)
	require.NoError(t, err)
	assert.True(t, claims.IsAccessToken())
}

func TestCodec_ExtraClaimsCannotOverrideReserved(t *testing.T) {
	now := time.Unix(1700000000, 0)
	codec := NewCodec("test-secret").WithClock(func() time.Time { return now })

	signed, err := codec.Mint("a@b.com", models.TokenTypeAccess, time.Minute, map[string]interface{}{
		"sub":        "evil@b.com",
		"token_type": "refresh",
		"exp":        now.Add(24 * time.Hour).Unix(),
	})
	require.NoError(t, err)

	claims, err := codec.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", claims.Subject)
	assert.Equal(t, models.TokenTypeAccess, claims.TokenType)
	assert.Equal(t, now.Add(time.Minute).Unix(), claims.ExpiresAt.Unix())
}

func TestHash_Deterministic(t *testing.T) {
	assert.Equal(t, Hash("abc"), Hash("abc"))
	assert.NotEqual(t, Hash("abc"), Hash("abd"))
	assert.Len(t, Hash("abc"), 64)
}
