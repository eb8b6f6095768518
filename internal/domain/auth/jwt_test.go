package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailledger/internal/core/apperror"
	appctx "retailledger/internal/core/context"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("secret"))
	in := appctx.Actor{UserID: "u1", Role: appctx.RoleCashier, BranchID: "b1"}

	token, exp, err := svc.GenerateAccessToken(in)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), exp, time.Minute)

	actor, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, in, *actor)
}

func TestJWTService_Rejects(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("secret"))
	valid, _, err := svc.GenerateAccessToken(appctx.Actor{UserID: "u1", Role: appctx.RoleAdmin})
	require.NoError(t, err)

	otherKey := NewJWTService(DefaultJWTConfig("other"))
	otherIssuer := NewJWTService(JWTConfig{Secret: "secret", Issuer: "someone-else", AccessTokenTTL: time.Minute})
	foreign, _, err := otherIssuer.GenerateAccessToken(appctx.Actor{UserID: "u1", Role: appctx.RoleAdmin})
	require.NoError(t, err)

	expired := NewJWTService(DefaultJWTConfig("secret"))
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	old, _, err := expired.GenerateAccessToken(appctx.Actor{UserID: "u1", Role: appctx.RoleAdmin})
	require.NoError(t, err)

	badRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "retailledger"},
		UserID:           "u1",
		Role:             "SUPERUSER",
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "u1", Role: "ADMIN"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	cases := map[string]struct {
		svc   *JWTService
		token string
	}{
		"wrong key":    {otherKey, valid},
		"wrong issuer": {svc, foreign},
		"expired":      {svc, old},
		"unknown role": {svc, badRole},
		"alg none":     {svc, none},
		"garbage":      {svc, "not-a-token"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := tc.svc.ValidateToken(tc.token)
			require.Error(t, err)
			assert.True(t, apperror.HasCode(err, apperror.CodeUnauthorized), "got %v", err)
		})
	}
}
