package catalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/henjicc/henji-server/internal/domain/generation"
	"github.com/henjicc/henji-server/internal/domain/smartmatch"
)

type afterBuildFunc = func(ctx context.Context, opts generation.Options, bctx *generation.BuildContext) error

// persistUploads stores the source images so the task can be re-edited later.
func persistUploads(ctx context.Context, _ generation.Options, bctx *generation.BuildContext) error {
	_, err := bctx.PersistImages(ctx)
	return err
}

// chain runs hooks in order and stops at the first error.
func chain(hooks ...afterBuildFunc) afterBuildFunc {
	return func(ctx context.Context, opts generation.Options, bctx *generation.BuildContext) error {
		for _, h := range hooks {
			if err := h(ctx, opts, bctx); err != nil {
				return err
			}
		}
		return nil
	}
}

// dropSentinel omits auto and smart placeholders from the wire payload.
func dropSentinel(v any, _ *generation.BuildContext) any {
	if s, ok := v.(string); ok && smartmatch.IsSentinel(s) {
		return nil
	}
	return v
}

// seconds renders a duration as "<n>s".
func seconds(v any, _ *generation.BuildContext) any {
	switch d := v.(type) {
	case string:
		if strings.HasSuffix(d, "s") {
			return d
		}
		return d + "s"
	default:
		return fmt.Sprintf("%vs", d)
	}
}

// stringify renders numeric values as strings for APIs that expect enums.
func stringify(v any, _ *generation.BuildContext) any {
	return fmt.Sprint(v)
}

// orientation maps a ratio token onto landscape, portrait or square. Placeholders pass
// through so that smart matching can still replace them.
func orientation(v any, _ *generation.BuildContext) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	switch s {
	case "landscape", "portrait", "square":
		return s
	}
	w, h, ok := smartmatch.ParsePair(s)
	if !ok {
		return s
	}
	switch {
	case w > h:
		return "landscape"
	case w < h:
		return "portrait"
	}
	return "square"
}

func noImages(bctx *generation.BuildContext) bool { return len(bctx.Images) == 0 }

func hasImages(bctx *generation.BuildContext) bool { return len(bctx.Images) > 0 }

// requireImages validates the number of uploaded images for one mode.
func requireImages(model, modeKey string, bounds map[string][2]int) func(*generation.BuildContext) error {
	return func(bctx *generation.BuildContext) error {
		mode := bctx.Params.String(modeKey)
		b, ok := bounds[mode]
		if !ok {
			return nil
		}
		n := len(bctx.Images)
		switch {
		case b[1] == 0 && n < b[0]:
			return generation.NewValidationError(model, "mode %s needs at least %d images, got %d", mode, b[0], n)
		case b[1] > 0 && (n < b[0] || n > b[1]):
			return generation.NewValidationError(model, "mode %s needs %d-%d images, got %d", mode, b[0], b[1], n)
		}
		return nil
	}
}

// defaultMode fills in the mode parameter before the mode switch reads it.
func defaultMode(key, mode string) func(context.Context, *generation.BuildContext) error {
	return func(_ context.Context, bctx *generation.BuildContext) error {
		if bctx.Params.String(key) == "" {
			bctx.Params[key] = mode
		}
		return nil
	}
}

func paramInt(p generation.Params, key string) int {
	if v, ok := p.Int(key); ok {
		return v
	}
	if s := p.String(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return 0
}

func paramBool(p generation.Params, key string) bool {
	switch v := p[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

// seedreamSize resolves the output size of Seedream models from the resolution
// selector: "smart" matches the first image, "custom" uses the explicit sides and any
// other value is a named ratio. The zero Size means no selector was given.
func seedreamSize(bctx *generation.BuildContext) smartmatch.Size {
	selected := bctx.Params.String("selectedResolution")
	if selected == "" {
		return smartmatch.Size{}
	}
	tier := smartmatch.ParseTier(bctx.Params.String("resolutionQuality"))

	switch selected {
	case smartmatch.TokenSmart:
		if len(bctx.Images) > 0 && bctx.Images[0].Width > 0 && bctx.Images[0].Height > 0 {
			return smartmatch.SmartResolutionFor(bctx.Images[0].Width, bctx.Images[0].Height, tier)
		}
		return smartmatch.BaseResolution("1:1", tier)
	case "custom":
		w, h := paramInt(bctx.Params, "customWidth"), paramInt(bctx.Params, "customHeight")
		if w > 0 && h > 0 {
			return smartmatch.Size{Width: w, Height: h}
		}
		return smartmatch.Size{}
	}
	return smartmatch.BaseResolution(selected, tier)
}

// customSize reads customWidth/customHeight, falling back to def.
func customSize(bctx *generation.BuildContext, def smartmatch.Size) smartmatch.Size {
	w, h := paramInt(bctx.Params, "customWidth"), paramInt(bctx.Params, "customHeight")
	if w > 0 && h > 0 {
		return smartmatch.Size{Width: w, Height: h}
	}
	return def
}
