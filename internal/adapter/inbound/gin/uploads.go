package gin

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/henjicc/henji-server/internal/domain/asset"
	"github.com/henjicc/henji-server/internal/domain/generation"
	"github.com/henjicc/henji-server/internal/infra/task"
	"github.com/henjicc/henji-server/internal/port/outbound"
	apperrors "github.com/henjicc/henji-server/internal/shared/errors"
)

// assetInput is a file carried in a JSON request: either base64 data (optionally as a
// data URL) or the path of an already stored asset.
type assetInput struct {
	Data     string `json:"data,omitempty"`
	MIMEType string `json:"mime_type,omitempty"`
	Path     string `json:"path,omitempty"`
}

// assetDecoder turns request files into generation assets.
type assetDecoder struct {
	store     outbound.AssetStoragePort
	inspector task.Inspector
	maxSize   int64
}

// decode resolves inputs. Stored paths are canonicalized here. Their bytes are read
// back only when load is set, since the builder needs them but presets only need the
// paths, whose existence the preset domain checks when it adopts them.
func (d *assetDecoder) decode(ctx context.Context, inputs []assetInput, load bool) ([]generation.Asset, error) {
	assets := make([]generation.Asset, 0, len(inputs))
	for i, in := range inputs {
		a := generation.Asset{MIMEType: in.MIMEType, Path: strings.TrimSpace(in.Path)}

		switch {
		case in.Data != "":
			data, mimeType, err := decodeData(in.Data)
			if err != nil {
				return nil, apperrors.BadRequest(fmt.Sprintf("file %d: %v", i, err))
			}
			a.Data = data
			a.Path = ""
			if a.MIMEType == "" {
				a.MIMEType = mimeType
			}
		case a.Path != "":
			p, ok := asset.CleanPath(a.Path)
			if !ok {
				return nil, apperrors.BadRequest(fmt.Sprintf("file %d: invalid path", i))
			}
			a.Path = p
			if !load {
				assets = append(assets, a)
				continue
			}
			data, err := d.read(ctx, a.Path)
			if err != nil {
				return nil, err
			}
			a.Data = data
		default:
			return nil, apperrors.BadRequest(fmt.Sprintf("file %d: data or path is required", i))
		}

		if d.maxSize > 0 && int64(len(a.Data)) > d.maxSize {
			return nil, apperrors.BadRequest(fmt.Sprintf("file %d: exceeds %d bytes", i, d.maxSize))
		}
		if d.inspector != nil {
			if info, err := d.inspector.Inspect(a.Data); err == nil {
				if info.MIMEType != "" {
					a.MIMEType = info.MIMEType
				}
				a.Width, a.Height = info.Width, info.Height
			}
		}
		if a.MIMEType == "" {
			return nil, apperrors.BadRequest(fmt.Sprintf("file %d: unrecognized media type", i))
		}
		assets = append(assets, a)
	}
	return assets, nil
}

func (d *assetDecoder) read(ctx context.Context, p string) ([]byte, error) {
	rc, err := d.store.Open(ctx, p)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	r := io.Reader(rc)
	if d.maxSize > 0 {
		r = io.LimitReader(rc, d.maxSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	return data, nil
}

// decodeData accepts bare base64 or a "data:<mime>;base64," URL.
func decodeData(s string) ([]byte, string, error) {
	var mimeType string
	if rest, ok := strings.CutPrefix(s, "data:"); ok {
		meta, payload, found := strings.Cut(rest, ",")
		if !found || !strings.HasSuffix(meta, ";base64") {
			return nil, "", fmt.Errorf("malformed data URL")
		}
		mimeType = strings.TrimSuffix(meta, ";base64")
		s = payload
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		if data, err = base64.RawStdEncoding.DecodeString(s); err != nil {
			return nil, "", fmt.Errorf("invalid base64 data")
		}
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("empty data")
	}
	return data, mimeType, nil
}
