// Package mediameta reads the real dimensions and duration of generated artifacts.
package mediameta

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/abema/go-mp4"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"

	"github.com/henjicc/henji-server/internal/infra/task"
)

// ErrUnsupported is returned for content the inspector cannot measure.
var ErrUnsupported = errors.New("unsupported media")

// Inspector implements task.Inspector.
type Inspector struct{}

// New creates an inspector.
func New() *Inspector {
	return &Inspector{}
}

// Inspect sniffs the content type and measures images and ISO-BMFF videos. Audio and
// other types only get their type and extension.
func (p *Inspector) Inspect(data []byte) (task.MediaInfo, error) {
	if len(data) == 0 {
		return task.MediaInfo{}, fmt.Errorf("%w: empty data", ErrUnsupported)
	}
	mt := mimetype.Detect(data)
	info := task.MediaInfo{MIMEType: mt.String(), Ext: mt.Extension()}
	if i := strings.IndexByte(info.MIMEType, ';'); i >= 0 {
		info.MIMEType = info.MIMEType[:i]
	}

	switch {
	case strings.HasPrefix(info.MIMEType, "image/"):
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return info, fmt.Errorf("decode image header: %w", err)
		}
		info.Width, info.Height = cfg.Width, cfg.Height
	case info.MIMEType == "video/mp4" || info.MIMEType == "video/quicktime":
		if err := inspectMP4(data, &info); err != nil {
			return info, err
		}
	case strings.HasPrefix(info.MIMEType, "audio/"), strings.HasPrefix(info.MIMEType, "video/"):
	default:
		return info, fmt.Errorf("%w: %s", ErrUnsupported, info.MIMEType)
	}
	return info, nil
}

func inspectMP4(data []byte, info *task.MediaInfo) error {
	r := bytes.NewReader(data)
	boxes, err := mp4.ExtractBoxWithPayload(r, nil, mp4.BoxPath{mp4.BoxTypeMoov(), mp4.BoxTypeMvhd()})
	if err != nil {
		return fmt.Errorf("read movie header: %w", err)
	}
	for _, b := range boxes {
		mvhd, ok := b.Payload.(*mp4.Mvhd)
		if ok && mvhd.Timescale > 0 {
			info.Duration = float64(mvhd.GetDuration()) / float64(mvhd.Timescale)
			break
		}
	}

	if _, err := r.Seek(0, 0); err != nil {
		return fmt.Errorf("rewind: %w", err)
	}
	boxes, err = mp4.ExtractBoxWithPayload(r, nil, mp4.BoxPath{mp4.BoxTypeMoov(), mp4.BoxTypeTrak(), mp4.BoxTypeTkhd()})
	if err != nil {
		return fmt.Errorf("read track header: %w", err)
	}
	// Audio tracks carry a zero size; take the first visual track.
	for _, b := range boxes {
		tkhd, ok := b.Payload.(*mp4.Tkhd)
		if !ok {
			continue
		}
		w, h := int(tkhd.Width>>16), int(tkhd.Height>>16)
		if w > 0 && h > 0 {
			info.Width, info.Height = w, h
			break
		}
	}
	return nil
}

// Compile-time interface check
var _ task.Inspector = (*Inspector)(nil)
