package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/henjicc/henji-server/internal/port/outbound"
	apperrors "github.com/henjicc/henji-server/internal/shared/errors"
)

const (
	// RateLimitRemaining is the header for remaining requests.
	RateLimitRemaining = "X-RateLimit-Remaining"
	// RateLimitLimit is the header for the limit.
	RateLimitLimit = "X-RateLimit-Limit"
	// RateLimitReset is the header for reset time.
	RateLimitReset = "X-RateLimit-Reset"
	// RetryAfter is the header for retry time.
	RetryAfter = "Retry-After"
)

// RateLimitConfig holds rate limit configuration.
type RateLimitConfig struct {
	// Limit is the maximum number of requests.
	Limit int
	// Window is the time window.
	Window time.Duration
	// KeyFunc generates the rate limit key from request.
	// Default uses client IP.
	KeyFunc func(*gin.Context) string
}

// RateLimit returns a middleware that limits requests using the given limiter.
// A nil limiter or a non-positive limit disables it. Limiter failures let the
// request through.
func RateLimit(limiter outbound.RateLimiterPort, cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = func(c *gin.Context) string {
			return "ip:" + c.ClientIP()
		}
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}

	return func(c *gin.Context) {
		if limiter == nil || cfg.Limit <= 0 {
			c.Next()
			return
		}

		key := c.Request.Method + ":" + c.FullPath() + ":" + cfg.KeyFunc(c)
		ctx := c.Request.Context()

		allowed, err := limiter.Allow(ctx, key, cfg.Limit, cfg.Window)
		if err != nil {
			_ = c.Error(err)
			c.Next()
			return
		}

		remaining, _ := limiter.GetRemaining(ctx, key, cfg.Limit, cfg.Window)
		c.Header(RateLimitLimit, strconv.Itoa(cfg.Limit))
		c.Header(RateLimitRemaining, strconv.Itoa(remaining))
		c.Header(RateLimitReset, strconv.FormatInt(time.Now().Add(cfg.Window).Unix(), 10))

		if !allowed {
			c.Header(RetryAfter, strconv.Itoa(int(cfg.Window.Seconds())))
			appErr := apperrors.RateLimited("")
			c.AbortWithStatusJSON(appErr.StatusCode, appErr.ToResponse())
			return
		}

		c.Next()
	}
}
