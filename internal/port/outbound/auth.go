package outbound

import "time"

// TokenClaims are the claims of a validated API token.
type TokenClaims struct {
	Subject   string
	ExpiresAt time.Time
}

// TokenPort issues and validates API bearer tokens.
type TokenPort interface {
	// IssueToken signs a token for subject. A zero ttl uses the default expiry.
	IssueToken(subject string, ttl time.Duration) (token string, expiresAt time.Time, err error)

	// ValidateToken checks the signature and expiry of a token.
	ValidateToken(token string) (*TokenClaims, error)
}
