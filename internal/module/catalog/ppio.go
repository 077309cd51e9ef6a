package catalog

import (
	"context"
	"strings"

	"github.com/henjicc/henji-server/internal/domain/generation"
)

var ppioVideoRatios = []string{"21:9", "16:9", "4:3", "1:1", "3:4", "9:16"}

func ppioModels() []*generation.ModelConfig {
	return []*generation.ModelConfig{
		ppioSeedance("seedance-v1", "Seedance 1.0"),
		ppioSeedance("seedance-v1-lite", "Seedance 1.0 Lite"),
		ppioSeedance("seedance-v1-pro", "Seedance 1.0 Pro"),
		ppioViduQ1(),
		ppioKling25Turbo(),
		ppioHailuo23(),
		ppioPixverse45(),
		ppioWan25Preview(),
		ppioSeedream40(),
		ppioMinimaxSpeech26(),
	}
}

// ppioI2V routes to "<base>-i2v" when images are uploaded and "<base>-t2v" otherwise.
func ppioI2V(base string) func(generation.Options, *generation.BuildContext) string {
	return func(_ generation.Options, bctx *generation.BuildContext) string {
		if len(bctx.Images) > 0 {
			return base + "-i2v"
		}
		return base + "-t2v"
	}
}

func ppioSeedance(id, name string) *generation.ModelConfig {
	return &generation.ModelConfig{
		ID:        id,
		Name:      name,
		MediaType: generation.MediaVideo,
		Provider:  ProviderPPIO,
		Endpoint:  "/async/seedance-v1-lite-t2v",
		Route: func(opts generation.Options, bctx *generation.BuildContext) string {
			variant := "lite"
			switch bctx.SelectedModel {
			case "seedance-v1-pro":
				variant = "pro"
			case "seedance-v1":
				if bctx.Params.String("ppioSeedanceV1Variant") == "pro" {
					variant = "pro"
				}
			}
			return ppioI2V("/async/seedance-v1-" + variant)(opts, bctx)
		},
		ParamMapping: map[string]generation.ParamRule{
			"resolution":   generation.Key("ppioSeedanceV1Resolution"),
			"aspect_ratio": generation.Key("ppioSeedanceV1AspectRatio").WithDefault("16:9"),
			"duration":     generation.From("ppioSeedanceV1VideoDuration", "videoDuration").WithDefault(5),
			"camera_fixed": generation.Key("ppioSeedanceV1CameraFixed"),
		},
		Features: generation.Features{
			SmartMatch: &generation.SmartMatchConfig{
				ParamKey:     "aspect_ratio",
				DefaultRatio: "16:9",
				Options:      ppioVideoRatios,
			},
			ImageUpload: &generation.ImageUploadConfig{ParamKey: "image", Mode: generation.UploadSingle},
		},
		Hooks: generation.Hooks{
			AfterBuild: chain(persistUploads, func(_ context.Context, opts generation.Options, bctx *generation.BuildContext) error {
				if len(bctx.Images) > 1 {
					opts["last_image"] = bctx.Images[1].DataURL()
				}
				return nil
			}),
		},
	}
}

const (
	viduModeText      = "text-image-to-video"
	viduModeStartEnd  = "start-end-frame"
	viduModeReference = "reference-to-video"
	viduModeKey       = "ppioViduQ1Mode"
)

func ppioViduQ1() *generation.ModelConfig {
	return &generation.ModelConfig{
		ID:        "vidu-q1",
		Name:      "Vidu Q1",
		MediaType: generation.MediaVideo,
		Provider:  ProviderPPIO,
		Endpoint:  "/async/vidu-q1-text2video",
		Route: func(_ generation.Options, bctx *generation.BuildContext) string {
			switch bctx.Params.String(viduModeKey) {
			case viduModeStartEnd:
				return "/async/vidu-q1-startend2video"
			case viduModeReference:
				return "/async/vidu-q1-reference2video"
			}
			if len(bctx.Images) > 0 {
				return "/async/vidu-q1-img2video"
			}
			return "/async/vidu-q1-text2video"
		},
		ParamMapping: map[string]generation.ParamRule{
			"duration":           generation.From("ppioViduQ1VideoDuration", "videoDuration"),
			"movement_amplitude": generation.Key("ppioViduQ1MovementAmplitude"),
			"bgm":                generation.Key("ppioViduQ1Bgm"),
		},
		Features: generation.Features{
			ModeSwitch: &generation.ModeSwitchConfig{
				ModeParamKey: viduModeKey,
				Configs: map[string]generation.ModeConfig{
					viduModeText: {
						ParamMapping: map[string]generation.ParamRule{
							"aspect_ratio": generation.Key("ppioViduQ1AspectRatio").When(noImages),
							"style":        generation.Key("ppioViduQ1Style").When(noImages),
						},
						Features: generation.Features{
							ImageUpload: &generation.ImageUploadConfig{ParamKey: "images", Mode: generation.UploadMultiple, MaxImages: 1},
						},
					},
					viduModeStartEnd: {
						Features: generation.Features{
							ImageUpload: &generation.ImageUploadConfig{ParamKey: "images", Mode: generation.UploadMultiple, MaxImages: 2},
						},
					},
					viduModeReference: {
						ParamMapping: map[string]generation.ParamRule{
							"aspect_ratio": generation.Key("ppioViduQ1AspectRatio"),
						},
						Features: generation.Features{
							SmartMatch: &generation.SmartMatchConfig{
								ParamKey:     "aspect_ratio",
								DefaultRatio: "16:9",
								Options:      []string{"16:9", "9:16", "1:1"},
							},
							ImageUpload: &generation.ImageUploadConfig{ParamKey: "images", Mode: generation.UploadMultiple, MaxImages: 7},
						},
					},
				},
			},
		},
		Hooks: generation.Hooks{
			BeforeBuild: defaultMode(viduModeKey, viduModeText),
			ValidateParams: requireImages("vidu-q1", viduModeKey, map[string][2]int{
				viduModeStartEnd:  {2, 0},
				viduModeReference: {1, 7},
			}),
			AfterBuild: persistUploads,
		},
	}
}

func ppioKling25Turbo() *generation.ModelConfig {
	return &generation.ModelConfig{
		ID:        "kling-2.5-turbo",
		Name:      "Kling 2.5 Turbo",
		MediaType: generation.MediaVideo,
		Provider:  ProviderPPIO,
		Aliases:   []string{"kling-v2.5-turbo"},
		Endpoint:  "/async/kling-2.5-turbo-t2v",
		Route:     ppioI2V("/async/kling-2.5-turbo"),
		ParamMapping: map[string]generation.ParamRule{
			"duration":        generation.From("ppioKling25VideoDuration", "videoDuration").WithDefault(5).WithTransform(stringify),
			"cfg_scale":       generation.Key("ppioKling25CfgScale"),
			"negative_prompt": generation.Key("videoNegativePrompt"),
			"aspect_ratio":    generation.Key("ppioKling25AspectRatio").When(noImages),
		},
		Hooks: generation.Hooks{
			// Kling takes the image as bare base64 rather than a data URL.
			AfterBuild: chain(persistUploads, func(_ context.Context, opts generation.Options, bctx *generation.BuildContext) error {
				if len(bctx.Images) > 0 {
					opts["image"] = bctx.Images[0].Base64()
				}
				return nil
			}),
		},
	}
}

func ppioHailuo23() *generation.ModelConfig {
	return &generation.ModelConfig{
		ID:        "minimax-hailuo-2.3",
		Name:      "Hailuo 2.3",
		MediaType: generation.MediaVideo,
		Provider:  ProviderPPIO,
		Endpoint:  "/async/minimax-hailuo-2.3-t2v",
		Route: func(opts generation.Options, bctx *generation.BuildContext) string {
			if len(bctx.Images) == 0 {
				return "/async/minimax-hailuo-2.3-t2v"
			}
			if fast, _ := opts["fast_pretreatment"].(bool); fast {
				return "/async/minimax-hailuo-2.3-fast-i2v"
			}
			return "/async/minimax-hailuo-2.3-i2v"
		},
		ParamMapping: map[string]generation.ParamRule{
			"duration":                generation.From("ppioHailuo23VideoDuration", "videoDuration").WithDefault(6),
			"resolution":              generation.From("ppioHailuo23VideoResolution", "videoResolution").WithDefault("768P"),
			"enable_prompt_expansion": generation.Key("ppioHailuo23EnablePromptExpansion"),
			"fast_pretreatment":       generation.Key("ppioHailuo23FastMode").When(hasImages),
		},
		Features: generation.Features{
			ImageUpload: &generation.ImageUploadConfig{ParamKey: "image", Mode: generation.UploadSingle},
		},
		Hooks: generation.Hooks{AfterBuild: persistUploads},
	}
}

func ppioPixverse45() *generation.ModelConfig {
	return &generation.ModelConfig{
		ID:        "pixverse-v4.5",
		Name:      "PixVerse 4.5",
		MediaType: generation.MediaVideo,
		Provider:  ProviderPPIO,
		Endpoint:  "/async/pixverse-v4.5-t2v",
		Route:     ppioI2V("/async/pixverse-v4.5"),
		ParamMapping: map[string]generation.ParamRule{
			"duration":        generation.From("ppioPixverseV45VideoDuration", "videoDuration").WithDefault(5),
			"resolution":      generation.Key("ppioPixverseV45Resolution").WithDefault("540p"),
			"aspect_ratio":    generation.Key("ppioPixverseV45AspectRatio").WithDefault("16:9").When(noImages),
			"negative_prompt": generation.Key("videoNegativePrompt"),
			"seed":            generation.Key("seed"),
		},
		Features: generation.Features{
			ImageUpload: &generation.ImageUploadConfig{ParamKey: "image", Mode: generation.UploadSingle},
		},
		Hooks: generation.Hooks{AfterBuild: persistUploads},
	}
}

func ppioWan25Preview() *generation.ModelConfig {
	return &generation.ModelConfig{
		ID:            "wan-2.5-preview",
		Name:          "Wan 2.5 Preview",
		MediaType:     generation.MediaVideo,
		Provider:      ProviderPPIO,
		Endpoint:      "/async/wan-2.5-t2v-preview",
		ImageEndpoint: "/async/wan-2.5-i2v-preview",
		ParamMapping: map[string]generation.ParamRule{
			"duration":      generation.From("ppioWan25VideoDuration", "videoDuration").WithDefault(5),
			"resolution":    generation.Key("ppioWan25Resolution").WithDefault("1080P"),
			"aspect_ratio":  generation.Key("ppioWan25AspectRatio").When(noImages),
			"prompt_extend": generation.Key("ppioWan25PromptExtend"),
			"audio":         generation.Key("ppioWan25Audio"),
		},
		Features: generation.Features{
			ImageUpload: &generation.ImageUploadConfig{ParamKey: "img_url", Mode: generation.UploadSingle},
		},
		Hooks: generation.Hooks{AfterBuild: persistUploads},
	}
}

func ppioSeedream40() *generation.ModelConfig {
	return &generation.ModelConfig{
		ID:        "seedream-4.0",
		Name:      "Seedream 4.0",
		MediaType: generation.MediaImage,
		Provider:  ProviderPPIO,
		Aliases:   []string{"seedream-v4"},
		Endpoint:  "/seedream-4.0",
		ParamMapping: map[string]generation.ParamRule{
			"sequential_image_generation": generation.Key("ppioSeedream40SequentialImageGeneration").WithDefault("disabled"),
			"max_images": generation.From("ppioSeedream40MaxImages", "numImages").When(func(bctx *generation.BuildContext) bool {
				return bctx.Params.String("ppioSeedream40SequentialImageGeneration") == "auto"
			}),
			"watermark": generation.Key("watermark").WithDefault(false),
		},
		Features: generation.Features{
			ImageUpload: &generation.ImageUploadConfig{ParamKey: "images", Mode: generation.UploadMultiple, MaxImages: 10},
		},
		Hooks: generation.Hooks{
			AfterBuild: chain(persistUploads, func(_ context.Context, opts generation.Options, bctx *generation.BuildContext) error {
				if size := seedreamSize(bctx); size.Width > 0 {
					opts["size"] = size.String()
				}
				return nil
			}),
		},
	}
}

// speechSettings maps UI parameters onto the nested voice_setting and audio_setting
// objects of the Minimax speech API.
var speechSettings = map[string]map[string]string{
	"voice_setting": {
		"voice_id":           "minimaxVoiceId",
		"speed":              "minimaxAudioSpeed",
		"vol":                "minimaxAudioVol",
		"pitch":              "minimaxAudioPitch",
		"emotion":            "minimaxAudioEmotion",
		"latex_read":         "minimaxLatexRead",
		"text_normalization": "minimaxTextNormalization",
	},
	"audio_setting": {
		"sample_rate": "minimaxAudioSampleRate",
		"bitrate":     "minimaxAudioBitrate",
		"format":      "minimaxAudioFormat",
		"channel":     "minimaxAudioChannel",
	},
}

func ppioMinimaxSpeech26() *generation.ModelConfig {
	return &generation.ModelConfig{
		ID:        "minimax-speech-2.6",
		Name:      "Minimax Speech 2.6",
		MediaType: generation.MediaAudio,
		Provider:  ProviderPPIO,
		Aliases:   []string{"minimax-speech-2.6-hd", "minimax-speech-2.6-turbo"},
		Endpoint:  "/minimax-speech-2.6-hd",
		Route: func(_ generation.Options, bctx *generation.BuildContext) string {
			switch bctx.SelectedModel {
			case "minimax-speech-2.6-hd":
				return "/minimax-speech-2.6-hd"
			case "minimax-speech-2.6-turbo":
				return "/minimax-speech-2.6-turbo"
			}
			if bctx.Params.String("minimaxAudioSpec") == "turbo" {
				return "/minimax-speech-2.6-turbo"
			}
			return "/minimax-speech-2.6-hd"
		},
		ParamMapping: map[string]generation.ParamRule{
			"output_format":  generation.Key("output_format").WithDefault("url"),
			"language_boost": generation.Key("minimaxLanguageBoost"),
		},
		Hooks: generation.Hooks{
			ValidateParams: func(bctx *generation.BuildContext) error {
				if strings.TrimSpace(bctx.Prompt) == "" {
					return generation.NewValidationError("minimax-speech-2.6", "text is required")
				}
				return nil
			},
			AfterBuild: func(_ context.Context, opts generation.Options, bctx *generation.BuildContext) error {
				opts["text"] = bctx.Prompt
				for group, fields := range speechSettings {
					setting := map[string]any{}
					for wire, param := range fields {
						if v, ok := bctx.Params.Lookup(param); ok && v != "" {
							setting[wire] = v
						}
					}
					if len(setting) > 0 {
						opts[group] = setting
					}
				}
				return nil
			},
		},
	}
}
