package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test-jwt-secret-key-for-unit-tests"

func TestJWTTokenService_GenerateAndValidate(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, 12*time.Hour, "qr-wallet")

	issued, tokenStr, err := svc.Generate("W000000000001")
	require.NoError(t, err)
	assert.NotEmpty(t, tokenStr)
	assert.NotEmpty(t, issued.TokenID)
	assert.True(t, issued.ExpiresAt.After(time.Now()))

	claims, err := svc.Validate(tokenStr)
	require.NoError(t, err)
	assert.Equal(t, "W000000000001", claims.WalletID)
	assert.Equal(t, issued.TokenID, claims.TokenID)
	assert.WithinDuration(t, issued.ExpiresAt, claims.ExpiresAt, time.Second)
}

func TestJWTTokenService_UniqueTokenIDs(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, time.Hour, "qr-wallet")

	a, _, err := svc.Generate("W000000000001")
	require.NoError(t, err)
	b, _, err := svc.Generate("W000000000001")
	require.NoError(t, err)

	assert.NotEqual(t, a.TokenID, b.TokenID)
}

func TestJWTTokenService_ExpiredToken(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, -1*time.Hour, "qr-wallet")

	_, tokenStr, err := svc.Generate("W000000000001")
	require.NoError(t, err)

	_, err = svc.Validate(tokenStr)
	assert.Error(t, err, "expired token should fail validation")
}

func TestJWTTokenService_InvalidSignature(t *testing.T) {
	svc1 := NewJWTTokenService("secret-1", time.Hour, "qr-wallet")
	svc2 := NewJWTTokenService("secret-2", time.Hour, "qr-wallet")

	_, tokenStr, err := svc1.Generate("W000000000001")
	require.NoError(t, err)

	_, err = svc2.Validate(tokenStr)
	assert.Error(t, err, "token signed with different secret should fail")
}

func TestJWTTokenService_WrongIssuer(t *testing.T) {
	other := NewJWTTokenService(testJWTSecret, time.Hour, "someone-else")
	svc := NewJWTTokenService(testJWTSecret, time.Hour, "qr-wallet")

	_, tokenStr, err := other.Generate("W000000000001")
	require.NoError(t, err)

	_, err = svc.Validate(tokenStr)
	assert.Error(t, err)
}

func TestJWTTokenService_RejectsNoneAlgorithm(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, time.Hour, "qr-wallet")

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "W000000000001",
		ID:        "jti",
		Issuer:    "qr-wallet",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	tokenStr, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.Validate(tokenStr)
	assert.Error(t, err)
}

func TestJWTTokenService_InvalidTokenString(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, time.Hour, "qr-wallet")

	_, err := svc.Validate("not.a.valid.jwt")
	assert.Error(t, err)

	_, err = svc.Validate("")
	assert.Error(t, err)
}
