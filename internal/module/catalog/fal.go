package catalog

import (
	"context"
	"fmt"

	"github.com/henjicc/henji-server/internal/domain/generation"
	"github.com/henjicc/henji-server/internal/domain/smartmatch"
)

var falImageRatios = []string{"21:9", "16:9", "3:2", "4:3", "5:4", "1:1", "4:5", "3:4", "2:3", "9:16"}

func falModels() []*generation.ModelConfig {
	return []*generation.ModelConfig{
		falNanoBanana("nano-banana", "Nano Banana", "fal-ai/nano-banana", "falNanoBananaNumImages", "falNanoBananaAspectRatio"),
		falNanoBananaPro(),
		falSeedreamV4(),
		falZImageTurbo(),
		falVeo31(),
		falSeedanceV1(),
		falKlingVideoO1(),
	}
}

func falNanoBanana(id, name, app, numKey, ratioKey string) *generation.ModelConfig {
	return &generation.ModelConfig{
		ID:            id,
		Name:          name,
		MediaType:     generation.MediaImage,
		Provider:      ProviderFal,
		Aliases:       []string{"fal-ai-" + id, app},
		Endpoint:      app,
		ImageEndpoint: app + "/edit",
		ParamMapping: map[string]generation.ParamRule{
			"num_images":            generation.From(numKey, "numImages").WithDefault(1),
			"aspect_ratio":          generation.From(ratioKey, "aspectRatio").WithDefault("1:1").WithTransform(dropSentinel),
			"seed":                  generation.Key("seed"),
			"guidance_scale":        generation.Key("guidanceScale"),
			"num_inference_steps":   generation.Key("numInferenceSteps"),
			"enable_safety_checker": generation.Key("enableSafetyChecker"),
		},
		Features: generation.Features{
			SmartMatch: &generation.SmartMatchConfig{
				ParamKey:     "aspect_ratio",
				DefaultRatio: "1:1",
				Options:      falImageRatios,
			},
			ImageUpload: &generation.ImageUploadConfig{
				ParamKey: "image_urls",
				Mode:     generation.UploadMultiple,
			},
		},
		Hooks: generation.Hooks{AfterBuild: persistUploads},
	}
}

func falNanoBananaPro() *generation.ModelConfig {
	cfg := falNanoBanana("nano-banana-pro", "Nano Banana Pro", "fal-ai/nano-banana-pro", "falNanoBananaProNumImages", "falNanoBananaProAspectRatio")
	cfg.ParamMapping["resolution"] = generation.From("falNanoBananaProResolution", "resolution").WithDefault("1K")
	return cfg
}

func falSeedreamV4() *generation.ModelConfig {
	return &generation.ModelConfig{
		ID:            "bytedance-seedream-v4",
		Name:          "Seedream 4.0 (fal)",
		MediaType:     generation.MediaImage,
		Provider:      ProviderFal,
		Aliases:       []string{"fal-ai-bytedance-seedream-v4"},
		Endpoint:      "fal-ai/bytedance/seedream/v4/text-to-image",
		ImageEndpoint: "fal-ai/bytedance/seedream/v4/edit",
		ParamMapping: map[string]generation.ParamRule{
			"num_images":            generation.From("falSeedream40NumImages", "numImages").WithDefault(1),
			"enable_safety_checker": generation.Key("enableSafetyChecker").WithDefault(false),
		},
		Features: generation.Features{
			ImageUpload: &generation.ImageUploadConfig{
				ParamKey:  "image_urls",
				Mode:      generation.UploadMultiple,
				MaxImages: 10,
			},
		},
		Hooks: generation.Hooks{
			AfterBuild: chain(persistUploads, func(_ context.Context, opts generation.Options, bctx *generation.BuildContext) error {
				size := seedreamSize(bctx)
				if size.Width == 0 {
					size = smartmatch.Size{Width: 2048, Height: 2048}
				}
				opts["image_size"] = map[string]any{"width": size.Width, "height": size.Height}
				return nil
			}),
		},
	}
}

func falZImageTurbo() *generation.ModelConfig {
	return &generation.ModelConfig{
		ID:        "fal-ai-z-image-turbo",
		Name:      "Z-Image Turbo",
		MediaType: generation.MediaImage,
		Provider:  ProviderFal,
		Aliases:   []string{"z-image-turbo"},
		Endpoint:  "fal-ai/z-image/turbo",
		ParamMapping: map[string]generation.ParamRule{
			"num_images":              generation.From("falZImageTurboNumImages", "numImages").WithDefault(1),
			"num_inference_steps":     generation.Key("falZImageTurboNumInferenceSteps").WithDefault(8),
			"enable_prompt_expansion": generation.Key("falZImageTurboEnablePromptExpansion").WithDefault(false),
			"acceleration":            generation.Key("falZImageTurboAcceleration").WithDefault("none"),
			"seed":                    generation.Key("seed"),
		},
		Hooks: generation.Hooks{
			AfterBuild: func(_ context.Context, opts generation.Options, bctx *generation.BuildContext) error {
				size := customSize(bctx, smartmatch.Size{Width: 1440, Height: 1440})
				opts["image_size"] = map[string]any{"width": size.Width, "height": size.Height}
				return nil
			},
		},
	}
}

const (
	veoModeText      = "text-image-to-video"
	veoModeStartEnd  = "start-end-frame"
	veoModeReference = "reference-to-video"
)

func falVeo31() *generation.ModelConfig {
	return &generation.ModelConfig{
		ID:        "veo3.1",
		Name:      "Veo 3.1",
		MediaType: generation.MediaVideo,
		Provider:  ProviderFal,
		Aliases:   []string{"fal-ai-veo-3.1", "veo-3.1"},
		Endpoint:  "fal-ai/veo3.1",
		Route:     veoRoute,
		ParamMapping: map[string]generation.ParamRule{
			"duration":        generation.From("falVeo31VideoDuration", "videoDuration").WithDefault(8).WithTransform(seconds),
			"aspect_ratio":    generation.Key("falVeo31AspectRatio").WithDefault("16:9"),
			"resolution":      generation.Key("falVeo31Resolution").WithDefault("1080p"),
			"enhance_prompt":  generation.Key("falVeo31EnhancePrompt"),
			"generate_audio":  generation.Key("falVeo31GenerateAudio"),
			"auto_fix":        generation.Key("falVeo31AutoFix"),
			"negative_prompt": generation.Key("videoNegativePrompt"),
		},
		Features: generation.Features{
			SmartMatch: &generation.SmartMatchConfig{
				ParamKey:     "aspect_ratio",
				DefaultRatio: "16:9",
				Options:      []string{"16:9", "9:16", "1:1"},
			},
			ModeSwitch: &generation.ModeSwitchConfig{
				ModeParamKey: "falVeo31Mode",
				Configs: map[string]generation.ModeConfig{
					veoModeText: {
						Features: generation.Features{
							ImageUpload: &generation.ImageUploadConfig{ParamKey: "image_url", Mode: generation.UploadSingle},
						},
					},
					veoModeStartEnd: {
						Features: generation.Features{
							ImageUpload: &generation.ImageUploadConfig{ParamKey: "first_frame_url", Mode: generation.UploadSingle},
						},
					},
					veoModeReference: {
						Features: generation.Features{
							ImageUpload: &generation.ImageUploadConfig{ParamKey: "image_urls", Mode: generation.UploadMultiple, MaxImages: 3},
						},
					},
				},
			},
		},
		Hooks: generation.Hooks{
			BeforeBuild: defaultMode("falVeo31Mode", veoModeText),
			ValidateParams: requireImages("veo3.1", "falVeo31Mode", map[string][2]int{
				veoModeStartEnd:  {2, 2},
				veoModeReference: {1, 3},
			}),
			AfterBuild: chain(persistUploads, func(_ context.Context, opts generation.Options, bctx *generation.BuildContext) error {
				if bctx.Params.String("falVeo31Mode") == veoModeStartEnd && len(bctx.Images) > 1 {
					opts["last_frame_url"] = bctx.Images[1].DataURL()
				}
				return nil
			}),
		},
	}
}

func veoRoute(_ generation.Options, bctx *generation.BuildContext) string {
	fast := paramBool(bctx.Params, "falVeo31FastMode")
	prefix := "fal-ai/veo3.1"
	if fast {
		prefix += "/fast"
	}
	switch bctx.Params.String("falVeo31Mode") {
	case veoModeStartEnd:
		return prefix + "/first-last-frame-to-video"
	case veoModeReference:
		return "fal-ai/veo3.1/reference-to-video"
	}
	if len(bctx.Images) > 0 {
		return prefix + "/image-to-video"
	}
	return prefix
}

func falSeedanceV1() *generation.ModelConfig {
	return &generation.ModelConfig{
		ID:        "bytedance-seedance-v1",
		Name:      "Seedance 1.0 (fal)",
		MediaType: generation.MediaVideo,
		Provider:  ProviderFal,
		Aliases:   []string{"fal-ai-bytedance-seedance-v1"},
		Endpoint:  "fal-ai/bytedance/seedance/v1/lite/text-to-video",
		Route:     seedanceRoute,
		ParamMapping: map[string]generation.ParamRule{
			"aspect_ratio": generation.Key("ppioSeedanceV1AspectRatio").WithDefault("16:9"),
			"duration":     generation.From("falSeedanceV1VideoDuration", "videoDuration").WithDefault(5).WithTransform(stringify),
			"resolution":   generation.Key("ppioSeedanceV1Resolution").WithDefault("720p"),
			"camera_fixed": generation.Key("ppioSeedanceV1CameraFixed").WithDefault(false),
			"seed":         generation.Key("seed"),
		},
		Features: generation.Features{
			SmartMatch: &generation.SmartMatchConfig{
				ParamKey:     "aspect_ratio",
				DefaultRatio: "16:9",
				Options:      []string{"21:9", "16:9", "4:3", "1:1", "3:4", "9:16"},
			},
			ImageUpload: &generation.ImageUploadConfig{ParamKey: "image_url", Mode: generation.UploadSingle},
		},
		Hooks: generation.Hooks{
			AfterBuild: chain(persistUploads, func(_ context.Context, opts generation.Options, bctx *generation.BuildContext) error {
				if len(bctx.Images) > 1 {
					opts["end_image_url"] = bctx.Images[1].DataURL()
				}
				return nil
			}),
		},
	}
}

// seedanceVersion picks lite or pro. 1080p output is only offered by pro.
func seedanceVersion(opts generation.Options, bctx *generation.BuildContext) string {
	if res, _ := opts["resolution"].(string); res == "1080p" || res == "1080P" {
		return "pro"
	}
	if v := bctx.Params.String("falSeedanceV1Version"); v == "pro" {
		return v
	}
	return "lite"
}

func seedanceRoute(opts generation.Options, bctx *generation.BuildContext) string {
	version := seedanceVersion(opts, bctx)
	prefix := "fal-ai/bytedance/seedance/v1/" + version
	if version == "pro" && paramBool(bctx.Params, "falSeedanceV1FastMode") {
		prefix += "/fast"
	}
	switch {
	case bctx.Params.String("falSeedanceV1Mode") == "reference-to-video" && len(bctx.Images) > 0:
		return prefix + "/reference-to-video"
	case len(bctx.Images) > 0:
		return prefix + "/image-to-video"
	}
	return prefix + "/text-to-video"
}

const (
	klingO1ModeKey       = "falKlingVideoO1Mode"
	klingO1ModeImage     = "image-to-video"
	klingO1ModeReference = "reference-to-video"
	klingO1ModeEdit      = "video-to-video-edit"
	klingO1ModeVideoRef  = "video-to-video-reference"
)

var klingO1Endpoints = map[string]string{
	klingO1ModeImage:     "fal-ai/kling-video/o1/image-to-video",
	klingO1ModeReference: "fal-ai/kling-video/o1/reference-to-video",
	klingO1ModeEdit:      "fal-ai/kling-video/o1/video-to-video/edit",
	klingO1ModeVideoRef:  "fal-ai/kling-video/o1/video-to-video/reference",
}

func falKlingVideoO1() *generation.ModelConfig {
	ratio := generation.Key("falKlingVideoO1AspectRatio").WithDefault("16:9").WithTransform(dropSentinel)
	elements := generation.Key("falKlingVideoO1Elements")
	keepAudio := generation.Key("falKlingVideoO1KeepAudio").WithDefault(false)
	refImages := &generation.ImageUploadConfig{ParamKey: "image_urls", Mode: generation.UploadMultiple, MaxImages: 7}
	sourceVideo := &generation.VideoUploadConfig{ParamKey: "video_url"}

	return &generation.ModelConfig{
		ID:        "kling-video-o1",
		Name:      "Kling O1 (fal)",
		MediaType: generation.MediaVideo,
		Provider:  ProviderFal,
		Aliases:   []string{"fal-ai-kling-video-o1", "fal-ai/kling-video/o1"},
		Endpoint:  klingO1Endpoints[klingO1ModeImage],
		Route: func(_ generation.Options, bctx *generation.BuildContext) string {
			if ep, ok := klingO1Endpoints[bctx.Params.String(klingO1ModeKey)]; ok {
				return ep
			}
			return klingO1Endpoints[klingO1ModeImage]
		},
		ParamMapping: map[string]generation.ParamRule{
			"duration":        generation.From("falKlingVideoO1VideoDuration", "videoDuration").WithDefault(5).WithTransform(stringify),
			"negative_prompt": generation.Key("videoNegativePrompt"),
		},
		Features: generation.Features{
			ModeSwitch: &generation.ModeSwitchConfig{
				ModeParamKey: klingO1ModeKey,
				Configs: map[string]generation.ModeConfig{
					klingO1ModeImage: {
						Features: generation.Features{
							ImageUpload: &generation.ImageUploadConfig{ParamKey: "start_image_url", Mode: generation.UploadSingle},
						},
					},
					klingO1ModeReference: {
						ParamMapping: map[string]generation.ParamRule{"aspect_ratio": ratio, "elements": elements},
						Features:     generation.Features{ImageUpload: refImages},
					},
					klingO1ModeEdit: {
						ParamMapping: map[string]generation.ParamRule{"keep_audio": keepAudio, "elements": elements},
						Features:     generation.Features{ImageUpload: refImages, VideoUpload: sourceVideo},
					},
					klingO1ModeVideoRef: {
						ParamMapping: map[string]generation.ParamRule{"aspect_ratio": ratio, "keep_audio": keepAudio, "elements": elements},
						Features:     generation.Features{ImageUpload: refImages, VideoUpload: sourceVideo},
					},
				},
			},
		},
		Hooks: generation.Hooks{
			BeforeBuild:    defaultMode(klingO1ModeKey, klingO1ModeImage),
			ValidateParams: validateKlingO1,
			AfterBuild: chain(persistUploads, func(_ context.Context, opts generation.Options, bctx *generation.BuildContext) error {
				if bctx.Params.String(klingO1ModeKey) == klingO1ModeImage && len(bctx.Images) > 1 {
					opts["end_image_url"] = bctx.Images[1].DataURL()
				}
				return nil
			}),
		},
	}
}

func validateKlingO1(bctx *generation.BuildContext) error {
	switch mode := bctx.Params.String(klingO1ModeKey); mode {
	case klingO1ModeImage:
		return requireImages("kling-video-o1", klingO1ModeKey, map[string][2]int{mode: {1, 2}})(bctx)
	case klingO1ModeReference:
		return nil
	case klingO1ModeEdit, klingO1ModeVideoRef:
		if len(bctx.Videos) == 0 {
			return fmt.Errorf("mode %s needs an uploaded video", mode)
		}
		return nil
	default:
		return generation.NewValidationError("kling-video-o1", "unknown mode %q", mode)
	}
}
