// Package apitoken signs and checks the bearer tokens that guard the HTTP API.
package apitoken

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/henjicc/henji-server/internal/port/outbound"
)

const issuer = "henji-server"

// ErrNoSecret is returned when the manager has no signing secret.
var ErrNoSecret = errors.New("jwt secret not configured")

// Config holds JWT configuration.
type Config struct {
	Secret string
	Expiry time.Duration
}

// jwtManager implements outbound.TokenPort with HS256 tokens.
type jwtManager struct {
	secret []byte
	expiry time.Duration
}

// NewJWTManager creates a new JWT manager.
func NewJWTManager(cfg Config) outbound.TokenPort {
	if cfg.Expiry <= 0 {
		cfg.Expiry = 30 * 24 * time.Hour
	}
	return &jwtManager{secret: []byte(cfg.Secret), expiry: cfg.Expiry}
}

func (m *jwtManager) IssueToken(subject string, ttl time.Duration) (string, time.Time, error) {
	if len(m.secret) == 0 {
		return "", time.Time{}, ErrNoSecret
	}
	if ttl <= 0 {
		ttl = m.expiry
	}
	now := time.Now()
	expiresAt := now.Add(ttl)

	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

func (m *jwtManager) ValidateToken(tokenString string) (*outbound.TokenClaims, error) {
	if len(m.secret) == 0 {
		return nil, ErrNoSecret
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	out := &outbound.TokenClaims{Subject: claims.Subject}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

// Compile-time check
var _ outbound.TokenPort = (*jwtManager)(nil)
