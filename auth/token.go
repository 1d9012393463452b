// Package auth is the narrow credential gate the coordination core
// consumes: verify a token, get back an identity string. Issuance and
// session management live elsewhere.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CustomClaims defines the structure of the data stored inside the JWT.
type CustomClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenVerifier validates a token and returns the identity it carries.
type TokenVerifier func(token string) (string, error)

// NewVerifier builds a verifier bound to the signing secret. The secret
// comes from configuration, never from source.
func NewVerifier(secret []byte) TokenVerifier {
	return func(tokenString string) (string, error) {
		if tokenString == "" {
			return "", fmt.Errorf("missing token")
		}
		token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
			return secret, nil
		})
		if err != nil {
			return "", err
		}
		claims, ok := token.Claims.(*CustomClaims)
		if !ok || !token.Valid {
			return "", jwt.ErrSignatureInvalid
		}
		return claims.Username, nil
	}
}

// GenerateToken creates a signed JWT for a specific user. Kept alongside
// the verifier so tests and operator tooling can mint credentials that
// the gate accepts.
func GenerateToken(secret []byte, username string, duration time.Duration) (string, error) {
	claims := &CustomClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(duration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "chat-rooms",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}
