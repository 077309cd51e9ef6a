package mediaprovider

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const maxDownloadBytes = 1 << 30

// Downloader fetches finished artifacts so they can be cached locally.
type Downloader struct {
	client *http.Client
}

// NewDownloader creates a downloader on client.
func NewDownloader(client *http.Client) *Downloader {
	return &Downloader{client: client}
}

// Fetch downloads rawURL. The MIME type comes from the response header and falls back
// to content sniffing when the header is missing or generic.
func (d *Downloader) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	if strings.HasPrefix(rawURL, "data:") {
		return decodeDataURL(rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}
	if len(data) > maxDownloadBytes {
		return nil, "", fmt.Errorf("download: artifact exceeds %d bytes", maxDownloadBytes)
	}

	mimeType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mimeType == "" || mimeType == "application/octet-stream" || mimeType == "binary/octet-stream" {
		mimeType, _, _ = mime.ParseMediaType(mimetype.Detect(data).String())
	}
	return data, mimeType, nil
}
