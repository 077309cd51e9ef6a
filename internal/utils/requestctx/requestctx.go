// Package requestctx carries request scoped values from the HTTP layer into the
// scheduler and the loggers without either depending on gin.
package requestctx

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	subjectKey
)

// WithRequestID stores the request id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return with(ctx, requestIDKey, requestID)
}

// RequestID returns the request id of ctx, or "".
func RequestID(ctx context.Context) string {
	return get(ctx, requestIDKey)
}

// WithSubject stores the authenticated token subject.
func WithSubject(ctx context.Context, subject string) context.Context {
	return with(ctx, subjectKey, subject)
}

// Subject returns the token subject of ctx, or "" for unauthenticated requests.
func Subject(ctx context.Context) string {
	return get(ctx, subjectKey)
}

// ZapFields returns the values set on ctx as log fields.
func ZapFields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if id := RequestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if sub := Subject(ctx); sub != "" {
		fields = append(fields, zap.String("subject", sub))
	}
	return fields
}

func with(ctx context.Context, key ctxKey, v string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, v)
}

func get(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	s, _ := ctx.Value(key).(string)
	return s
}
