package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/henjicc/henji-server/internal/shared/logger"
)

// Logging returns a middleware that logs HTTP requests.
func Logging(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		attrs := []any{
			"status", status,
			"method", c.Request.Method,
			"path", path,
			"latency_ms", latency.Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if query != "" {
			attrs = append(attrs, "query", redactQuery(c))
		}
		if userAgent := c.Request.UserAgent(); userAgent != "" {
			attrs = append(attrs, "user_agent", userAgent)
		}
		if requestID := c.GetString(RequestIDKey); requestID != "" {
			attrs = append(attrs, "request_id", requestID)
		}
		if subject := GetSubject(c); subject != "" {
			attrs = append(attrs, "subject", subject)
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}

		msg := "HTTP Request"
		switch {
		case status >= 500:
			log.Error(msg, attrs...)
		case status >= 400:
			log.Warn(msg, attrs...)
		default:
			log.Info(msg, attrs...)
		}
	}
}

// redactQuery hides the access token that EventSource and <img> clients pass in the URL.
func redactQuery(c *gin.Context) string {
	q := c.Request.URL.Query()
	if q.Has(AccessTokenParam) {
		q.Set(AccessTokenParam, "REDACTED")
	}
	return q.Encode()
}
