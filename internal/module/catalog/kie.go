package catalog

import (
	"github.com/henjicc/henji-server/internal/domain/generation"
)

func kieModels() []*generation.ModelConfig {
	return []*generation.ModelConfig{
		{
			ID:        "kie-nano-banana-pro",
			Name:      "Nano Banana Pro (KIE)",
			MediaType: generation.MediaImage,
			Provider:  ProviderKIE,
			Aliases:   []string{"nano-banana-pro-kie"},
			Endpoint:  "nano-banana-pro",
			ParamMapping: map[string]generation.ParamRule{
				"aspect_ratio":  generation.From("kieNanoBananaAspectRatio", "aspectRatio").WithDefault("1:1"),
				"resolution":    generation.From("kieNanoBananaResolution", "resolution").WithDefault("2K"),
				"output_format": generation.Key("kieNanoBananaOutputFormat").WithDefault("png"),
			},
			Features: generation.Features{
				SmartMatch: &generation.SmartMatchConfig{
					ParamKey:     "aspect_ratio",
					DefaultRatio: "1:1",
					Options:      falImageRatios,
				},
				ImageUpload: &generation.ImageUploadConfig{
					ParamKey:  "image_input",
					Mode:      generation.UploadMultiple,
					MaxImages: 8,
				},
			},
			Hooks: generation.Hooks{AfterBuild: persistUploads},
		},
		{
			ID:            "kie-grok-imagine-video",
			Name:          "Grok Imagine Video",
			MediaType:     generation.MediaVideo,
			Provider:      ProviderKIE,
			Aliases:       []string{"grok-imagine-video-kie"},
			Endpoint:      "grok-imagine/text-to-video",
			ImageEndpoint: "grok-imagine/image-to-video",
			ParamMapping: map[string]generation.ParamRule{
				"aspect_ratio": generation.From("kieGrokImagineVideoAspectRatio", "aspectRatio").
					WithDefault("16:9").
					WithTransform(orientation),
				"mode": generation.Key("kieGrokImagineVideoMode").WithTransform(func(v any, bctx *generation.BuildContext) any {
					// Spicy is text-only.
					if v == "spicy" && len(bctx.Images) > 0 {
						return "normal"
					}
					return v
				}),
			},
			Features: generation.Features{
				SmartMatch: &generation.SmartMatchConfig{
					ParamKey:     "aspect_ratio",
					DefaultRatio: "16:9",
					Options:      []string{"16:9", "9:16", "1:1"},
				},
				ImageUpload: &generation.ImageUploadConfig{
					ParamKey:  "image_urls",
					Mode:      generation.UploadMultiple,
					MaxImages: 1,
				},
			},
			Hooks: generation.Hooks{AfterBuild: persistUploads},
		},
	}
}
