package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Roles understood by the order service.
const (
	RoleUser     = "user"
	RoleDelivery = "delivery"
	RoleAdmin    = "admin"
)

var ErrSecretNotConfigured = errors.New("JWT secret not configured")

// Claims is the identity carried by access tokens: the subject is the user id.
type Claims struct {
	Role string `json:"role"`
	Type string `json:"typ,omitempty"`
	jwt.RegisteredClaims
}

// ParseToken parses and validates an HS256 token and returns its claims.
// Refresh tokens (typ=refresh) are rejected.
func ParseToken(tokenStr string, secret []byte) (*Claims, error) {
	if len(secret) == 0 {
		return nil, ErrSecretNotConfigured
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(strings.TrimSpace(tokenStr), claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || token == nil || !token.Valid {
		return nil, fmt.Errorf("invalid or expired token")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	if claims.Type == "refresh" {
		return nil, fmt.Errorf("invalid token type")
	}
	if claims.Role == "" {
		claims.Role = RoleUser
	}
	return claims, nil
}

// IssueToken signs an access token for userID. Used by tooling and tests; token issuance
// for end users belongs to the auth service.
func IssueToken(userID, role string, ttl time.Duration, secret []byte) (string, error) {
	if len(secret) == 0 {
		return "", ErrSecretNotConfigured
	}
	now := time.Now()
	claims := Claims{
		Role: role,
		Type: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
