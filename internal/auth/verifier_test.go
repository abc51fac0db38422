package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	assert.NoError(t, err)
	return signed
}

func TestVerifyValidToken(t *testing.T) {
	assert := assert.New(t)
	v := NewJWTVerifier("secret")

	credential := signToken(t, "secret", jwt.MapClaims{
		"id":       float64(42),
		"username": "alice",
	})

	identity, err := v.Verify(credential)
	assert.NoError(err)
	assert.Equal(int64(42), identity.ID)
	assert.Equal("alice", identity.Username)
}

func TestVerifyMissingToken(t *testing.T) {
	v := NewJWTVerifier("secret")

	_, err := v.Verify("")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestVerifyWrongSecret(t *testing.T) {
	v := NewJWTVerifier("secret")

	credential := signToken(t, "other-secret", jwt.MapClaims{
		"id":       float64(1),
		"username": "mallory",
	})

	_, err := v.Verify(credential)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestVerifyGarbageToken(t *testing.T) {
	v := NewJWTVerifier("secret")

	_, err := v.Verify("not.a.jwt")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestVerifyExpiredToken(t *testing.T) {
	v := NewJWTVerifier("secret")

	credential := signToken(t, "secret", jwt.MapClaims{
		"id":       float64(1),
		"username": "alice",
		"exp":      time.Now().Add(-time.Hour).Unix(),
	})

	_, err := v.Verify(credential)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestVerifyMissingIDClaim(t *testing.T) {
	v := NewJWTVerifier("secret")

	credential := signToken(t, "secret", jwt.MapClaims{
		"username": "alice",
	})

	_, err := v.Verify(credential)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestVerifyRejectsUnsignedToken(t *testing.T) {
	v := NewJWTVerifier("secret")

	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"id":       float64(1),
		"username": "mallory",
	})
	credential, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	assert.NoError(t, err)

	_, err = v.Verify(credential)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
