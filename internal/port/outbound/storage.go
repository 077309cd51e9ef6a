package outbound

import (
	"context"
	"errors"
	"io"
)

// ErrAssetNotFound is returned when a stored asset does not exist.
var ErrAssetNotFound = errors.New("asset not found")

// DocumentStorePort persists small JSON documents by key.
type DocumentStorePort interface {
	// ReadJSON decodes the document at key into dst. found is false when the key is
	// absent, in which case dst is untouched.
	ReadJSON(ctx context.Context, key string, dst any) (found bool, err error)

	// WriteJSON replaces the document at key.
	WriteJSON(ctx context.Context, key string, v any) error

	// Delete removes the document at key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
}

// AssetStoragePort stores uploaded and generated files addressed by path.
type AssetStoragePort interface {
	// Save stores data and returns its durable path.
	Save(ctx context.Context, data []byte, ext string) (string, error)

	// Open reads a stored asset.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes a stored asset. Missing assets are not an error.
	Delete(ctx context.Context, path string) error

	// DisplayURL returns a URL a client can load the asset from.
	DisplayURL(ctx context.Context, path string) (string, error)

	// List returns every stored path.
	List(ctx context.Context) ([]string, error)
}
