package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/henjicc/henji-server/internal/port/outbound"
	apperrors "github.com/henjicc/henji-server/internal/shared/errors"
	"github.com/henjicc/henji-server/internal/utils/requestctx"
)

const (
	// AuthorizationHeader is the header key for authorization.
	AuthorizationHeader = "Authorization"
	// BearerPrefix is the prefix for bearer tokens.
	BearerPrefix = "Bearer "
	// AccessTokenParam carries the token for clients that cannot set headers, such as
	// EventSource or an <img> tag.
	AccessTokenParam = "access_token"
	// SubjectKey is the context key for the token subject.
	SubjectKey = "subject"
)

// TokenValidator validates bearer tokens.
type TokenValidator interface {
	ValidateToken(token string) (*outbound.TokenClaims, error)
}

// Auth returns a middleware that validates bearer tokens.
// If the token is valid, it sets the subject in the context.
// If optional is true, the middleware will not abort on missing/invalid tokens.
func Auth(validator TokenValidator, optional bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c)
		if token == "" {
			if !optional {
				abortUnauthorized(c, "Authorization header required")
				return
			}
			c.Next()
			return
		}

		claims, err := validator.ValidateToken(token)
		if err != nil {
			if !optional {
				abortUnauthorized(c, "Invalid or expired token")
				return
			}
			c.Next()
			return
		}

		c.Set(SubjectKey, claims.Subject)
		c.Request = c.Request.WithContext(requestctx.WithSubject(c.Request.Context(), claims.Subject))
		c.Next()
	}
}

// RequireAuth returns a middleware that requires a valid token.
func RequireAuth(validator TokenValidator) gin.HandlerFunc {
	return Auth(validator, false)
}

// OptionalAuth returns a middleware that optionally validates tokens.
func OptionalAuth(validator TokenValidator) gin.HandlerFunc {
	return Auth(validator, true)
}

func abortUnauthorized(c *gin.Context, message string) {
	err := apperrors.Unauthorized(message)
	c.AbortWithStatusJSON(err.StatusCode, err.ToResponse())
}

// extractBearerToken reads the token from the Authorization header, falling back to the
// access_token query parameter.
func extractBearerToken(c *gin.Context) string {
	if authHeader := c.GetHeader(AuthorizationHeader); strings.HasPrefix(authHeader, BearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, BearerPrefix))
	}
	return c.Query(AccessTokenParam)
}

// GetSubject returns the token subject from context.
// Returns empty string if not found.
func GetSubject(c *gin.Context) string {
	return c.GetString(SubjectKey)
}
