package auth

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, secret string, claims jwt.RegisteredClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{RegisteredClaims: claims}).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", "helpdesk", 10)

	token, expiresAt, err := tm.GenerateToken("u-1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), expiresAt, 5*time.Second)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.Subject)
}

func TestParseTokenRejections(t *testing.T) {
	tm := NewTokenManager("secret", "helpdesk", 10)
	future := jwt.NewNumericDate(time.Now().Add(time.Hour))

	cases := map[string]struct {
		token string
		want  error
	}{
		"wrong secret": {
			token: signed(t, "other", jwt.RegisteredClaims{Subject: "u-1", Issuer: "helpdesk", ExpiresAt: future}),
			want:  ErrTokenInvalid,
		},
		"wrong issuer": {
			token: signed(t, "secret", jwt.RegisteredClaims{Subject: "u-1", Issuer: "elsewhere", ExpiresAt: future}),
			want:  ErrTokenInvalid,
		},
		"missing subject": {
			token: signed(t, "secret", jwt.RegisteredClaims{Issuer: "helpdesk", ExpiresAt: future}),
			want:  ErrTokenInvalid,
		},
		"no expiry": {
			token: signed(t, "secret", jwt.RegisteredClaims{Subject: "u-1", Issuer: "helpdesk"}),
			want:  ErrTokenInvalid,
		},
		"expired": {
			token: signed(t, "secret", jwt.RegisteredClaims{
				Subject:   "u-1",
				Issuer:    "helpdesk",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			}),
			want: ErrTokenExpired,
		},
		"garbage": {token: "not-a-jwt", want: ErrTokenInvalid},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := tm.ParseToken(tc.token)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestParseTokenToleratesClockSkew(t *testing.T) {
	tm := NewTokenManager("secret", "helpdesk", 10)
	token := signed(t, "secret", jwt.RegisteredClaims{
		Subject:   "u-1",
		Issuer:    "helpdesk",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-5 * time.Second)),
	})

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.Subject)
}
