package jwt

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenInfo is the unverified view of a token's registered claims.
type TokenInfo struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Inspect reads the registered claims of tokenStr without verifying its
// signature. ok is false when the token is not a well-formed JWT, which is
// normal for backends that hand out opaque tokens.
func Inspect(tokenStr string) (TokenInfo, bool) {
	if tokenStr == "" {
		return TokenInfo{}, false
	}

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, &claims); err != nil {
		return TokenInfo{}, false
	}

	info := TokenInfo{Subject: claims.Subject}
	if claims.IssuedAt != nil {
		info.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, true
}
