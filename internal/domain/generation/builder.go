package generation

import (
	"context"
	"errors"
	"fmt"

	"github.com/henjicc/henji-server/internal/domain/smartmatch"
)

// Builder interprets ModelConfigs into provider payloads.
type Builder struct {
	registry *Registry
}

// NewBuilder creates a builder over registry.
func NewBuilder(registry *Registry) *Builder {
	return &Builder{registry: registry}
}

// Registry returns the underlying registry.
func (b *Builder) Registry() *Registry {
	return b.registry
}

// Validate runs lookup, BeforeBuild and ValidateParams without touching assets.
// BeforeBuild sees a private copy of the params.
func (b *Builder) Validate(ctx context.Context, bctx *BuildContext) (*ModelConfig, error) {
	dry := *bctx
	dry.Params = bctx.Params.Clone()
	dry.Assets = nil
	return b.prepare(ctx, &dry)
}

func (b *Builder) prepare(ctx context.Context, bctx *BuildContext) (*ModelConfig, error) {
	cfg, err := b.registry.Get(bctx.SelectedModel)
	if err != nil {
		return nil, err
	}
	if bctx.Params == nil {
		bctx.Params = Params{}
	}
	if cfg.Hooks.BeforeBuild != nil {
		if err := cfg.Hooks.BeforeBuild(ctx, bctx); err != nil {
			return nil, fmt.Errorf("before build: %w", err)
		}
	}
	if cfg.Hooks.ValidateParams != nil {
		if err := cfg.Hooks.ValidateParams(bctx); err != nil {
			var verr *ValidationError
			if !errors.As(err, &verr) {
				err = NewValidationError(cfg.ID, "%v", err)
			}
			return nil, err
		}
	}
	return cfg, nil
}

// Build produces the options payload for bctx.SelectedModel. The returned config is the
// effective one after the mode switch.
func (b *Builder) Build(ctx context.Context, bctx *BuildContext) (Options, *ModelConfig, error) {
	base, err := b.prepare(ctx, bctx)
	if err != nil {
		return nil, nil, err
	}

	cfg := ResolveMode(base, bctx.Params)
	opts := make(Options, len(cfg.ParamMapping))

	for key, rule := range cfg.ParamMapping {
		if v, ok := rule.Resolve(bctx); ok {
			opts[key] = v
		}
	}

	if sm := cfg.Features.SmartMatch; sm != nil {
		applySmartMatch(opts, sm, bctx)
		if rule, ok := cfg.ParamMapping[sm.ParamKey]; ok && rule.Transform != nil {
			if v, ok := opts[sm.ParamKey]; ok && v != nil && v != smartmatch.TokenSmart {
				opts[sm.ParamKey] = rule.Transform(v, bctx)
			}
		}
	}

	if up := cfg.Features.ImageUpload; up != nil {
		applyImageUpload(opts, up, bctx)
	}
	if up := cfg.Features.VideoUpload; up != nil {
		applyVideoUpload(opts, up, bctx)
	}

	if cfg.Hooks.AfterBuild != nil {
		if err := cfg.Hooks.AfterBuild(ctx, opts, bctx); err != nil {
			return nil, nil, fmt.Errorf("after build: %w", err)
		}
	}

	return opts, cfg, nil
}

// applySmartMatch always re-matches when an image is present. Without one, only an
// absent or placeholder value is replaced by the default ratio.
func applySmartMatch(opts Options, sm *SmartMatchConfig, bctx *BuildContext) {
	if len(bctx.Images) == 0 {
		cur, _ := opts[sm.ParamKey].(string)
		if sm.DefaultRatio != "" && (opts[sm.ParamKey] == nil || smartmatch.IsSentinel(cur)) {
			opts[sm.ParamKey] = sm.DefaultRatio
		}
		return
	}

	first := bctx.Images[0]
	if token, ok := smartmatch.MatchClosest(first.Width, first.Height, sm.Options); ok {
		opts[sm.ParamKey] = token
		return
	}
	if sm.DefaultRatio != "" {
		opts[sm.ParamKey] = sm.DefaultRatio
	}
}

func applyImageUpload(opts Options, up *ImageUploadConfig, bctx *BuildContext) {
	if len(bctx.Images) == 0 {
		return
	}
	key := up.ParamKey
	if key == "" {
		key = DefaultImageParamKey
	}

	if up.Mode != UploadMultiple {
		opts[key] = encodeAsset(bctx.Images[0], up.Binary)
		return
	}

	images := bctx.Images
	if up.MaxImages > 0 && len(images) > up.MaxImages {
		images = images[:up.MaxImages]
	}
	out := make([]any, len(images))
	for i, img := range images {
		out[i] = encodeAsset(img, up.Binary)
	}
	opts[key] = out
}

func applyVideoUpload(opts Options, up *VideoUploadConfig, bctx *BuildContext) {
	if len(bctx.Videos) == 0 {
		return
	}
	key := up.ParamKey
	if key == "" {
		key = DefaultVideoParamKey
	}
	opts[key] = encodeAsset(bctx.Videos[0], up.Binary)
}

func encodeAsset(a Asset, binary bool) any {
	if binary {
		return a.Data
	}
	return a.DataURL()
}
