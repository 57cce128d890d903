package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func validClaims() Claims {
	return Claims{
		UserID: 42,
		Email:  "buyer@example.com",
		Phone:  "+15550001",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestVerifyToken_Valid(t *testing.T) {
	token, err := SignToken(testSecret, validClaims())
	require.NoError(t, err)

	identity, err := NewJWTVerifier(testSecret).VerifyToken("Bearer " + token)

	require.NoError(t, err)
	assert.Equal(t, int64(42), identity.UserID)
	assert.Equal(t, "buyer@example.com", identity.Email)
	assert.Equal(t, "+15550001", identity.Phone)
}

func TestVerifyToken_Rejects(t *testing.T) {
	good, err := SignToken(testSecret, validClaims())
	require.NoError(t, err)

	otherKey, err := SignToken("another-secret", validClaims())
	require.NoError(t, err)

	expiredClaims := validClaims()
	expiredClaims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	expired, err := SignToken(testSecret, expiredClaims)
	require.NoError(t, err)

	noUserClaims := validClaims()
	noUserClaims.UserID = 0
	noUser, err := SignToken(testSecret, noUserClaims)
	require.NoError(t, err)

	noExpClaims := validClaims()
	noExpClaims.ExpiresAt = nil
	noExp, err := SignToken(testSecret, noExpClaims)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"empty header", ""},
		{"no bearer prefix", good},
		{"empty token", "Bearer "},
		{"garbage", "Bearer not.a.jwt"},
		{"wrong signature", "Bearer " + otherKey},
		{"expired", "Bearer " + expired},
		{"missing user id", "Bearer " + noUser},
		{"missing expiry", "Bearer " + noExp},
	}

	verifier := NewJWTVerifier(testSecret)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity, err := verifier.VerifyToken(tt.header)
			assert.ErrorIs(t, err, ErrUnauthorized)
			assert.Nil(t, identity)
		})
	}
}

func TestVerifyToken_RejectsNoneAlgorithm(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, validClaims()).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewJWTVerifier(testSecret).VerifyToken("Bearer " + token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}
