package devserver

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MintDevToken signs a short-lived HS256 bearer token for local testing.
func MintDevToken(secret, userID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
