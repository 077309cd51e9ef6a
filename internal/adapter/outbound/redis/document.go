package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/henjicc/henji-server/internal/port/outbound"
)

const defaultDocumentKeyPrefix = "henji:doc:"

// DocumentStoreAdapter keeps each document as one JSON string value.
type DocumentStoreAdapter struct {
	client redis.UniversalClient
	prefix string
}

// NewDocumentStoreAdapter creates a document store. An empty prefix uses "henji:doc:".
func NewDocumentStoreAdapter(client redis.UniversalClient, prefix string) *DocumentStoreAdapter {
	if prefix == "" {
		prefix = defaultDocumentKeyPrefix
	}
	return &DocumentStoreAdapter{client: client, prefix: prefix}
}

func (a *DocumentStoreAdapter) ReadJSON(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := a.client.Get(ctx, a.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get document %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode document %s: %w", key, err)
	}
	return true, nil
}

func (a *DocumentStoreAdapter) WriteJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", key, err)
	}
	if err := a.client.Set(ctx, a.prefix+key, raw, 0).Err(); err != nil {
		return fmt.Errorf("set document %s: %w", key, err)
	}
	return nil
}

func (a *DocumentStoreAdapter) Delete(ctx context.Context, key string) error {
	if err := a.client.Del(ctx, a.prefix+key).Err(); err != nil {
		return fmt.Errorf("delete document %s: %w", key, err)
	}
	return nil
}

// Compile-time interface check
var _ outbound.DocumentStorePort = (*DocumentStoreAdapter)(nil)
