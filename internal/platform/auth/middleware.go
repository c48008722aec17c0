// Package auth authenticates callers. Every request carries a bearer token
// whose subject is the caller's protocol address; development mode also
// accepts a plain X-Caller-Address header so local tooling can act as any
// identity without minting tokens.
package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/m4a/m4a/internal/protocol"
)

const callerContextKey = "caller_address"

// DevCallerHeader names the development-mode identity header.
const DevCallerHeader = "X-Caller-Address"

// Claims is the token payload. Subject carries the caller address.
type Claims struct {
	jwt.RegisteredClaims
}

// Middleware validates the bearer token (HS256, shared secret) and stores
// the caller address in the request context. With dev enabled, a request
// without a token may identify itself via the X-Caller-Address header.
func Middleware(secret string, dev bool) echo.MiddlewareFunc {
	key := []byte(secret)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if header == "" {
				if dev {
					if addr := c.Request().Header.Get(DevCallerHeader); addr != "" {
						if strings.Contains(addr, "/") {
							return echo.NewHTTPError(http.StatusUnauthorized, "invalid caller address")
						}
						c.Set(callerContextKey, protocol.Address(addr))
						return next(c)
					}
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "missing credentials")
			}

			raw := strings.TrimPrefix(header, "Bearer ")
			if raw == header {
				return echo.NewHTTPError(http.StatusUnauthorized, "malformed authorization header")
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return key, nil
			})
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			if claims.Subject == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "token has no subject")
			}
			// Addresses become ledger key segments; the separator would let
			// one caller alias another record's composite key.
			if strings.Contains(claims.Subject, "/") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid caller address")
			}

			c.Set(callerContextKey, protocol.Address(claims.Subject))
			return next(c)
		}
	}
}

// Caller returns the authenticated address for the request, or protocol.Zero
// if the middleware did not run.
func Caller(c echo.Context) protocol.Address {
	addr, _ := c.Get(callerContextKey).(protocol.Address)
	return addr
}
