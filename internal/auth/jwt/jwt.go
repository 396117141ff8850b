// Package jwt issues and verifies the bearer tokens used by the HTTP API.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/havenpoint/facility-response/internal/domain"
)

// ErrInvalidToken is returned for malformed, expired or mis-signed tokens.
var ErrInvalidToken = errors.New("invalid token")

// Config holds token signing configuration.
type Config struct {
	SecretKey     string
	TokenDuration time.Duration
	Issuer        string
}

// Claims are the token claims carried by the API tokens.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator issues and verifies HMAC-signed tokens.
type Authenticator struct {
	config Config
}

// NewAuthenticator creates an authenticator. The secret key is required.
func NewAuthenticator(cfg Config) (*Authenticator, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("jwt secret key is required")
	}
	if cfg.TokenDuration <= 0 {
		cfg.TokenDuration = 12 * time.Hour
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "facility-response"
	}
	return &Authenticator{config: cfg}, nil
}

// IssueToken creates a signed token for the subject with the given role.
func (a *Authenticator) IssueToken(subject string, role domain.Role) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.config.Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.config.TokenDuration)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(a.config.SecretKey))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning the subject and role.
// Implements httputil.TokenVerifier.
func (a *Authenticator) Verify(_ context.Context, tokenString string) (string, domain.Role, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(a.config.SecretKey), nil
	}, jwt.WithIssuer(a.config.Issuer))
	if err != nil || !token.Valid {
		return "", "", ErrInvalidToken
	}

	role := domain.Role(claims.Role)
	if !role.IsValid() {
		return "", "", ErrInvalidToken
	}

	return claims.Subject, role, nil
}
