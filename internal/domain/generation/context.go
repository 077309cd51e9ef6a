package generation

import (
	"context"
	"encoding/base64"
	"strings"
)

// Asset is an uploaded source file held in memory for one build.
type Asset struct {
	Data     []byte `json:"-"`
	MIMEType string `json:"mime_type"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	// Path is set when the asset is already persisted and must be reused.
	Path string `json:"path,omitempty"`
}

// DataURL renders the asset as a base64 data URL.
func (a Asset) DataURL() string {
	mime := a.MIMEType
	if mime == "" {
		mime = "application/octet-stream"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(a.Data)
}

// Base64 returns the bare base64 payload.
func (a Asset) Base64() string {
	return base64.StdEncoding.EncodeToString(a.Data)
}

// Ext guesses a file extension from the MIME type.
func (a Asset) Ext() string {
	switch strings.ToLower(a.MIMEType) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "video/mp4":
		return ".mp4"
	case "video/quicktime":
		return ".mov"
	case "audio/mpeg":
		return ".mp3"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	}
	return ".bin"
}

// AssetSink persists uploads on behalf of afterBuild hooks.
type AssetSink interface {
	Persist(ctx context.Context, asset Asset) (string, error)
}

// BuildContext is the per-call input of a build. It is never persisted.
type BuildContext struct {
	SelectedModel  string
	Prompt         string
	NegativePrompt string
	Params         Params
	Images         []Asset
	Videos         []Asset

	// Assets persists uploads; nil during dry-run validation.
	Assets AssetSink

	// UploadedPaths collects the durable paths of persisted uploads in image order.
	UploadedPaths []string
}

// PersistImages saves every image that has no durable path yet and records the paths
// in UploadedPaths. Already persisted images keep their path.
func (b *BuildContext) PersistImages(ctx context.Context) ([]string, error) {
	if b.Assets == nil || len(b.Images) == 0 {
		return b.UploadedPaths, nil
	}
	paths := make([]string, len(b.Images))
	for i := range b.Images {
		if b.Images[i].Path == "" {
			path, err := b.Assets.Persist(ctx, b.Images[i])
			if err != nil {
				return nil, err
			}
			b.Images[i].Path = path
		}
		paths[i] = b.Images[i].Path
	}
	b.UploadedPaths = paths
	return paths, nil
}
