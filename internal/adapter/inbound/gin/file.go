package gin

import (
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/henjicc/henji-server/internal/port/inbound"
	"github.com/henjicc/henji-server/internal/port/outbound"
)

// fileAdapter implements inbound.FileHttpPort.
type fileAdapter struct {
	store outbound.AssetStoragePort
}

// NewFileAdapter creates a new adapter serving stored assets.
func NewFileAdapter(store outbound.AssetStoragePort) inbound.FileHttpPort {
	return &fileAdapter{store: store}
}

// ServeFile streams a stored asset. Paths are content addressed, so responses are
// cached for good.
//
//	@Summary		Get stored file
//	@Tags			Files
//	@Produce		octet-stream
//	@Security		BearerAuth
//	@Param			path	path	string	true	"Asset path"
//	@Success		200
//	@Failure		404	{object}	errors.ErrorResponse
//	@Router			/files/{path} [get]
func (a *fileAdapter) ServeFile(c *gin.Context) {
	p := strings.TrimPrefix(c.Param("path"), "/")
	if p == "" {
		badRequest(c, "path is required")
		return
	}
	rc, err := a.store.Open(c.Request.Context(), p)
	if err != nil {
		handleError(c, err)
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(path.Ext(p))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Type", contentType)
	c.Header("Cache-Control", "public, max-age=31536000, immutable")

	// Seekable files get range support, which video players rely on.
	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(c.Writer, c.Request, path.Base(p), time.Time{}, rs)
		return
	}
	c.DataFromReader(http.StatusOK, -1, contentType, rc, nil)
}
