package gin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/henjicc/henji-server/internal/adapter/outbound/assetfs"
)

func TestServeFile(t *testing.T) {
	store := assetfs.New(memfs.New(), "/files")
	p, err := store.Save(context.Background(), []byte("0123456789"), ".png")
	require.NoError(t, err)

	router := gin.New()
	router.GET("/files/*path", NewFileAdapter(store).ServeFile)

	t.Run("full body", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/files/"+p, nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "0123456789", w.Body.String())
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Cache-Control"), "immutable")
	})

	t.Run("range", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/files/"+p, nil)
		req.Header.Set("Range", "bytes=2-4")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusPartialContent, w.Code)
		assert.Equal(t, "234", w.Body.String())
	})

	t.Run("missing", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/files/ab/nothing.png", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
