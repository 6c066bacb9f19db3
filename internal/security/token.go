// Package security provides service-token credentials: short-lived HMAC
// JWTs for service-to-service calls and bcrypt hashing for the raw
// long-lived tokens they are minted from.
package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var errEmptySecret = errors.New("security: empty signing secret")

// ServiceClaims are the claims carried by a service JWT. The subject names
// the calling service and must match a registered service token.
type ServiceClaims struct {
	jwt.RegisteredClaims
}

// SignServiceToken mints an HS256 JWT for the named service caller.
func SignServiceToken(secret, subject string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errEmptySecret
	}
	now := time.Now()
	claims := ServiceClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, errSign := token.SignedString([]byte(secret))
	if errSign != nil {
		return "", fmt.Errorf("security: sign token: %w", errSign)
	}
	return signed, nil
}

// ParseServiceToken validates an HS256 service JWT and returns its claims.
func ParseServiceToken(secret, raw string) (*ServiceClaims, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errEmptySecret
	}
	claims := &ServiceClaims{}
	token, errParse := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("security: unexpected signing method %q", t.Method.Alg())
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if errParse != nil {
		return nil, fmt.Errorf("security: parse token: %w", errParse)
	}
	if !token.Valid {
		return nil, errors.New("security: invalid token")
	}
	return claims, nil
}

// HashToken hashes a raw service token for storage.
func HashToken(raw string) (string, error) {
	hashed, errHash := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if errHash != nil {
		return "", fmt.Errorf("security: hash token: %w", errHash)
	}
	return string(hashed), nil
}

// VerifyToken reports whether the raw token matches the stored hash.
func VerifyToken(hash, raw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw)) == nil
}
