package middleware

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/zeebo/blake3"

	apperrors "github.com/henjicc/henji-server/internal/shared/errors"
	"github.com/henjicc/henji-server/internal/utils/requestctx"
)

const (
	// IdempotencyKeyHeader is the header for idempotency key.
	IdempotencyKeyHeader = "Idempotency-Key"
	// IdempotentReplayedHeader marks a response served from the idempotency cache.
	IdempotentReplayedHeader = "Idempotent-Replayed"
	// idempotencyKeyPrefix is the Redis key prefix.
	idempotencyKeyPrefix = "henji:idempotency:"
	// defaultIdempotencyTTL is the default TTL for idempotency keys.
	defaultIdempotencyTTL = 24 * time.Hour
	// defaultIdempotencyLockTTL bounds how long a crashed request blocks its key.
	defaultIdempotencyLockTTL = 30 * time.Second
)

// IdempotencyConfig holds idempotency middleware configuration.
type IdempotencyConfig struct {
	// TTL is how long a successful response is replayed.
	TTL time.Duration
	// LockTTL is how long a request in flight holds its key.
	LockTTL time.Duration
	// SkipFunc determines if the request should skip idempotency check.
	SkipFunc func(*gin.Context) bool
}

// DefaultIdempotencyConfig returns the default idempotency configuration.
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     defaultIdempotencyTTL,
		LockTTL: defaultIdempotencyLockTTL,
	}
}

// idempotencyResponse stores the cached response.
type idempotencyResponse struct {
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type"`
	Location    string `json:"location,omitempty"`
	Body        []byte `json:"body"`
}

// idempotencyResponseWriter wraps gin.ResponseWriter to capture the response.
type idempotencyResponseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *idempotencyResponseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Idempotency makes a retried submission with the same Idempotency-Key and body return
// the original response instead of queuing a second generation. Only 2xx responses are
// stored, so a request rejected for a missing credential can be retried with the same
// key once the key is set. A nil client disables it.
func Idempotency(redis goredis.UniversalClient, cfg IdempotencyConfig) gin.HandlerFunc {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultIdempotencyTTL
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaultIdempotencyLockTTL
	}

	return func(c *gin.Context) {
		if redis == nil || c.Request.Method == http.MethodGet {
			c.Next()
			return
		}
		if cfg.SkipFunc != nil && cfg.SkipFunc(c) {
			c.Next()
			return
		}

		idempotencyKey := c.GetHeader(IdempotencyKeyHeader)
		if idempotencyKey == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		cacheKey := idempotencyCacheKey(c, idempotencyKey)

		if cached, err := getCachedResponse(ctx, redis, cacheKey); err == nil {
			if cached.Location != "" {
				c.Header("Location", cached.Location)
			}
			c.Header(IdempotentReplayedHeader, "true")
			c.Data(cached.StatusCode, cached.ContentType, cached.Body)
			c.Abort()
			return
		}

		lockKey := cacheKey + ":lock"
		locked, err := redis.SetNX(ctx, lockKey, "1", cfg.LockTTL).Result()
		if err != nil {
			// Redis trouble must not block submissions.
			c.Next()
			return
		}
		if !locked {
			appErr := apperrors.Conflict("a request with this idempotency key is already being processed")
			c.AbortWithStatusJSON(appErr.StatusCode, appErr.ToResponse())
			return
		}
		defer redis.Del(context.WithoutCancel(ctx), lockKey)

		respWriter := &idempotencyResponseWriter{
			ResponseWriter: c.Writer,
			body:           bytes.NewBuffer(nil),
		}
		c.Writer = respWriter

		c.Next()

		status := c.Writer.Status()
		if status < 200 || status > 299 {
			return
		}
		resp := &idempotencyResponse{
			StatusCode:  status,
			ContentType: c.Writer.Header().Get("Content-Type"),
			Location:    c.Writer.Header().Get("Location"),
			Body:        respWriter.body.Bytes(),
		}
		if err := cacheResponse(context.WithoutCancel(ctx), redis, cacheKey, resp, cfg.TTL); err != nil {
			_ = c.Error(err)
		}
	}
}

// idempotencyCacheKey derives the cache key from the route, the caller, the client key
// and the body. Hashing the body keeps a reused key with a different payload from
// replaying the wrong response.
func idempotencyCacheKey(c *gin.Context, idempotencyKey string) string {
	h := blake3.New()
	for _, part := range []string{c.Request.Method, c.FullPath(), requestctx.Subject(c.Request.Context()), idempotencyKey} {
		_, _ = h.Write([]byte(part))
		_, _ = h.Write([]byte{0})
	}
	_, _ = h.Write(readBody(c))
	return idempotencyKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

// readBody reads the request body and puts it back for the handler.
func readBody(c *gin.Context) []byte {
	if c.Request.Body == nil {
		return nil
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	return body
}

// getCachedResponse retrieves a cached response from Redis.
func getCachedResponse(ctx context.Context, redis goredis.UniversalClient, key string) (*idempotencyResponse, error) {
	data, err := redis.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}

	var resp idempotencyResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// cacheResponse stores a response in Redis.
func cacheResponse(ctx context.Context, redis goredis.UniversalClient, key string, resp *idempotencyResponse, ttl time.Duration) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return redis.Set(ctx, key, data, ttl).Err()
}
