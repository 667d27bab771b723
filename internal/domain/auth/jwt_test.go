package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "tradeledger/internal/core/context"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("secret"))
	user := appctx.UserContext{
		UserID:    "u-1",
		CompanyID: "c-1",
		StoreID:   "s-1",
		Email:     "owner@shop.test",
		Roles:     []string{"admin"},
	}

	token, expiresAt, err := svc.GenerateAccessToken(user)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 5*time.Second)

	got, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user, *got)
}

func TestJWTService_Rejects(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("secret"))

	foreign, _, err := NewJWTService(DefaultJWTConfig("other")).GenerateAccessToken(appctx.UserContext{UserID: "u"})
	require.NoError(t, err)

	expiredCfg := DefaultJWTConfig("secret")
	expiredCfg.AccessTokenTTL = -time.Minute
	expired, _, err := NewJWTService(expiredCfg).GenerateAccessToken(appctx.UserContext{UserID: "u"})
	require.NoError(t, err)

	otherIssuerCfg := DefaultJWTConfig("secret")
	otherIssuerCfg.Issuer = "elsewhere"
	otherIssuer, _, err := NewJWTService(otherIssuerCfg).GenerateAccessToken(appctx.UserContext{UserID: "u"})
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "u"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", foreign},
		{"expired", expired},
		{"wrong issuer", otherIssuer},
		{"unsigned", none},
		{"garbage", "not-a-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateToken(tt.token)
			assert.Error(t, err)
		})
	}
}

func TestJWTService_FallsBackToSubject(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("secret"))
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "tradeledger",
		Subject:   "u-7",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	got, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-7", got.UserID)
}
