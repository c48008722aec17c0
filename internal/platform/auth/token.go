package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/m4a/m4a/internal/protocol"
)

// Sign mints a bearer token for addr. Used by operator tooling and tests.
func Sign(secret string, addr protocol.Address, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(addr),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString([]byte(secret))
}
