package filestore

import (
	"context"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Version int      `json:"version"`
	Items   []string `json:"items"`
}

func TestDocumentStore(t *testing.T) {
	ctx := context.Background()
	fs := memfs.New()
	store := New(fs)

	t.Run("missing key", func(t *testing.T) {
		var d doc
		found, err := store.ReadJSON(ctx, "history", &d)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("write then read", func(t *testing.T) {
		require.NoError(t, store.WriteJSON(ctx, "history", doc{Version: 1, Items: []string{"a", "b"}}))

		var d doc
		found, err := store.ReadJSON(ctx, "history", &d)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, doc{Version: 1, Items: []string{"a", "b"}}, d)

		entries, err := fs.ReadDir("")
		require.NoError(t, err)
		require.Len(t, entries, 1, "temp file left behind")
		assert.Equal(t, "history.json", entries[0].Name())
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, store.WriteJSON(ctx, "history", doc{Version: 2}))
		var d doc
		_, err := store.ReadJSON(ctx, "history", &d)
		require.NoError(t, err)
		assert.Equal(t, 2, d.Version)
		assert.Empty(t, d.Items)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "history"))
		require.NoError(t, store.Delete(ctx, "history"))
		var d doc
		found, err := store.ReadJSON(ctx, "history", &d)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("rejects path keys", func(t *testing.T) {
		assert.Error(t, store.WriteJSON(ctx, "../escape", doc{}))
		assert.Error(t, store.WriteJSON(ctx, "", doc{}))
		_, err := store.ReadJSON(ctx, "a/b", &doc{})
		assert.Error(t, err)
	})
}
