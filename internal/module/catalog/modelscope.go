package catalog

import (
	"context"

	"github.com/henjicc/henji-server/internal/domain/generation"
	"github.com/henjicc/henji-server/internal/domain/smartmatch"
)

func modelscopeModels() []*generation.ModelConfig {
	return []*generation.ModelConfig{
		{
			ID:        "qwen-image",
			Name:      "Qwen-Image",
			MediaType: generation.MediaImage,
			Provider:  ProviderModelScope,
			Aliases:   []string{"MusePublic/Qwen-image"},
			Endpoint:  "MusePublic/Qwen-image",
			ParamMapping: map[string]generation.ParamRule{
				"steps":           generation.Key("modelscopeSteps"),
				"guidance":        generation.Key("modelscopeGuidance"),
				"seed":            generation.Key("seed"),
				"negative_prompt": generation.Key("negativePrompt"),
			},
			Hooks: generation.Hooks{
				AfterBuild: func(_ context.Context, opts generation.Options, bctx *generation.BuildContext) error {
					ratio := bctx.Params.String("aspectRatio")
					if ratio == "" || smartmatch.IsSentinel(ratio) {
						ratio = "1:1"
					}
					w, h, ok := smartmatch.ParsePair(ratio)
					if !ok {
						w, h = 1, 1
					}
					opts["size"] = smartmatch.QwenResolution(w, h).String()
					return nil
				},
			},
		},
		{
			ID:        "Tongyi-MAI/Z-Image-Turbo",
			Name:      "Z-Image-Turbo (ModelScope)",
			MediaType: generation.MediaImage,
			Provider:  ProviderModelScope,
			Aliases:   []string{"modelscope-z-image-turbo"},
			Endpoint:  "Tongyi-MAI/Z-Image-Turbo",
			ParamMapping: map[string]generation.ParamRule{
				"steps": generation.Key("modelscopeSteps").WithDefault(8),
				"seed":  generation.Key("seed"),
			},
			Hooks: generation.Hooks{
				AfterBuild: func(_ context.Context, opts generation.Options, bctx *generation.BuildContext) error {
					base := paramInt(bctx.Params, "baseSize")
					if base == 0 {
						base = 1024
					}
					base = smartmatch.NormalizeBaseSize(base, smartmatch.DefaultBaseSizeBounds)
					w, h, ok := smartmatch.ParsePair(bctx.Params.String("aspectRatio"))
					if !ok {
						w, h = 1, 1
					}
					size := smartmatch.CalculateResolutionWithBounds(base, w, h,
						smartmatch.DefaultBaseSizeBounds.Min/2, smartmatch.DefaultBaseSizeBounds.Max)
					opts["size"] = size.String()
					return nil
				},
			},
		},
	}
}
