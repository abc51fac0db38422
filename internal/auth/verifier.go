package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the stable user identity resolved from a session credential.
// The id is the only stable key; username is display-only.
type Identity struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Verifier resolves a session credential into an Identity.
type Verifier interface {
	Verify(credential string) (Identity, error)
}

var ErrUnauthenticated = errors.New("UNAUTHENTICATED: Invalid or missing credential")

// JWTVerifier validates HS256 tokens carrying id and username claims, the
// format the account service issues.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(credential string) (Identity, error) {
	if credential == "" {
		return Identity{}, ErrUnauthenticated
	}

	token, err := jwt.Parse(credential, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, ErrUnauthenticated
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrUnauthenticated
	}

	id, ok := claims["id"].(float64)
	if !ok {
		return Identity{}, ErrUnauthenticated
	}
	username, _ := claims["username"].(string)

	return Identity{ID: int64(id), Username: username}, nil
}
