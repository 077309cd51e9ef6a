package catalog

import (
	"context"
	"fmt"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/henjicc/henji-server/internal/domain/generation"
)

type recordingSink struct {
	saved []generation.Asset
}

func (s *recordingSink) Persist(_ context.Context, a generation.Asset) (string, error) {
	s.saved = append(s.saved, a)
	return fmt.Sprintf("uploads/%d%s", len(s.saved), a.Ext()), nil
}

func image(w, h int) generation.Asset {
	return generation.Asset{Data: []byte("img"), MIMEType: "image/png", Width: w, Height: h}
}

func build(t *testing.T, model string, params generation.Params, images ...generation.Asset) (generation.Options, string, *generation.BuildContext) {
	t.Helper()
	reg, err := NewRegistry()
	require.NoError(t, err)

	bctx := &generation.BuildContext{
		SelectedModel: model,
		Prompt:        "a lighthouse at dusk",
		Params:        params,
		Images:        images,
		Assets:        &recordingSink{},
	}
	opts, cfg, err := generation.NewBuilder(reg).Build(context.Background(), bctx)
	require.NoError(t, err)
	return opts, cfg.EndpointFor(opts, bctx), bctx
}

func TestNewRegistry(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)
	assert.Equal(t, len(Models()), reg.Len())

	for _, cfg := range reg.List() {
		assert.True(t, slices.Contains(Providers, cfg.Provider), "model %s has unknown provider %s", cfg.ID, cfg.Provider)
		assert.NotEmpty(t, cfg.Endpoint, "model %s has no endpoint", cfg.ID)
		assert.NotEmpty(t, cfg.MediaType, "model %s has no media type", cfg.ID)
	}

	for alias, id := range map[string]string{
		"fal-ai-nano-banana":  "nano-banana",
		"fal-ai/nano-banana":  "nano-banana",
		"nano-banana-pro-kie": "kie-nano-banana-pro",
		"z-image-turbo":       "fal-ai-z-image-turbo",
		"seedream-v4":         "seedream-4.0",
	} {
		cfg, err := reg.Get(alias)
		require.NoError(t, err, alias)
		assert.Equal(t, id, cfg.ID)
	}

	assert.ErrorIs(t, reg.Register(&generation.ModelConfig{ID: "late"}), generation.ErrRegistryFrozen)
}

func TestFalNanoBanana(t *testing.T) {
	t.Run("text to image", func(t *testing.T) {
		opts, endpoint, _ := build(t, "nano-banana", generation.Params{})
		assert.Equal(t, "fal-ai/nano-banana", endpoint)
		assert.Equal(t, "1:1", opts["aspect_ratio"])
		assert.Equal(t, 1, opts["num_images"])
		assert.NotContains(t, opts, "image_urls")
	})

	t.Run("edit matches the upload ratio", func(t *testing.T) {
		opts, endpoint, bctx := build(t, "fal-ai-nano-banana", generation.Params{"aspectRatio": "1:1"}, image(1600, 900))
		assert.Equal(t, "fal-ai/nano-banana/edit", endpoint)
		assert.Equal(t, "16:9", opts["aspect_ratio"])
		urls, ok := opts["image_urls"].([]any)
		require.True(t, ok)
		require.Len(t, urls, 1)
		assert.Equal(t, "data:image/png;base64,aW1n", urls[0])
		assert.Equal(t, []string{"uploads/1.png"}, bctx.UploadedPaths)
	})

	t.Run("auto is not sent", func(t *testing.T) {
		opts, _, _ := build(t, "nano-banana", generation.Params{"aspectRatio": "auto"})
		// Without an image the placeholder falls back to the default ratio.
		assert.Equal(t, "1:1", opts["aspect_ratio"])
	})
}

func TestFalVeo31Routes(t *testing.T) {
	_, endpoint, _ := build(t, "veo3.1", generation.Params{})
	assert.Equal(t, "fal-ai/veo3.1", endpoint)

	opts, endpoint, _ := build(t, "veo3.1", generation.Params{"falVeo31FastMode": true}, image(1280, 720))
	assert.Equal(t, "fal-ai/veo3.1/fast/image-to-video", endpoint)
	assert.Equal(t, "8s", opts["duration"])
	assert.NotEmpty(t, opts["image_url"])

	opts, endpoint, _ = build(t, "veo3.1", generation.Params{"falVeo31Mode": veoModeStartEnd}, image(720, 1280), image(720, 1280))
	assert.Equal(t, "fal-ai/veo3.1/first-last-frame-to-video", endpoint)
	assert.Equal(t, "9:16", opts["aspect_ratio"])
	assert.NotEmpty(t, opts["first_frame_url"])
	assert.NotEmpty(t, opts["last_frame_url"])

	reg, err := NewRegistry()
	require.NoError(t, err)
	_, err = generation.NewBuilder(reg).Validate(context.Background(), &generation.BuildContext{
		SelectedModel: "veo3.1",
		Params:        generation.Params{"falVeo31Mode": veoModeStartEnd},
		Images:        []generation.Asset{image(1, 1)},
	})
	assert.ErrorIs(t, err, generation.ErrValidation)
}

func TestFalSeedanceProForHighResolution(t *testing.T) {
	_, endpoint, _ := build(t, "bytedance-seedance-v1", generation.Params{"ppioSeedanceV1Resolution": "1080p"})
	assert.Equal(t, "fal-ai/bytedance/seedance/v1/pro/text-to-video", endpoint)

	opts, endpoint, _ := build(t, "bytedance-seedance-v1", generation.Params{}, image(1024, 1024))
	assert.Equal(t, "fal-ai/bytedance/seedance/v1/lite/image-to-video", endpoint)
	assert.Equal(t, "5", opts["duration"])
	assert.Equal(t, "1:1", opts["aspect_ratio"])
}

func TestFalSeedreamImageSize(t *testing.T) {
	opts, _, _ := build(t, "bytedance-seedream-v4", generation.Params{
		"selectedResolution": "custom",
		"customWidth":        1536,
		"customHeight":       "1024",
	})
	assert.Equal(t, map[string]any{"width": 1536, "height": 1024}, opts["image_size"])

	opts, _, _ = build(t, "bytedance-seedream-v4", generation.Params{})
	assert.Equal(t, map[string]any{"width": 2048, "height": 2048}, opts["image_size"])
}

func video() generation.Asset {
	return generation.Asset{Data: []byte("vid"), MIMEType: "video/mp4"}
}

func TestFalKlingVideoO1(t *testing.T) {
	t.Run("image to video by default", func(t *testing.T) {
		opts, endpoint, bctx := build(t, "kling-video-o1", generation.Params{"videoDuration": 10}, image(1280, 720), image(1280, 720))
		assert.Equal(t, "fal-ai/kling-video/o1/image-to-video", endpoint)
		assert.Equal(t, "10", opts["duration"])
		assert.Equal(t, "data:image/png;base64,aW1n", opts["start_image_url"])
		assert.Equal(t, "data:image/png;base64,aW1n", opts["end_image_url"])
		assert.NotContains(t, opts, "video_url")
		assert.Len(t, bctx.UploadedPaths, 2)
	})

	t.Run("video edit uploads the video", func(t *testing.T) {
		reg, err := NewRegistry()
		require.NoError(t, err)
		bctx := &generation.BuildContext{
			SelectedModel: "fal-ai-kling-video-o1",
			Prompt:        "make it rain",
			Params:        generation.Params{klingO1ModeKey: klingO1ModeEdit, "falKlingVideoO1KeepAudio": true},
			Videos:        []generation.Asset{video()},
			Assets:        &recordingSink{},
		}
		opts, cfg, err := generation.NewBuilder(reg).Build(context.Background(), bctx)
		require.NoError(t, err)
		assert.Equal(t, "fal-ai/kling-video/o1/video-to-video/edit", cfg.EndpointFor(opts, bctx))
		assert.Equal(t, "data:video/mp4;base64,dmlk", opts["video_url"])
		assert.Equal(t, true, opts["keep_audio"])
		assert.NotContains(t, opts, "aspect_ratio")
	})

	t.Run("video reference sends ratio", func(t *testing.T) {
		reg, err := NewRegistry()
		require.NoError(t, err)
		bctx := &generation.BuildContext{
			SelectedModel: "kling-video-o1",
			Params:        generation.Params{klingO1ModeKey: klingO1ModeVideoRef, "falKlingVideoO1AspectRatio": "9:16"},
			Videos:        []generation.Asset{video()},
		}
		opts, cfg, err := generation.NewBuilder(reg).Build(context.Background(), bctx)
		require.NoError(t, err)
		assert.Equal(t, "fal-ai/kling-video/o1/video-to-video/reference", cfg.EndpointFor(opts, bctx))
		assert.Equal(t, "9:16", opts["aspect_ratio"])
		assert.Equal(t, false, opts["keep_audio"])
		assert.NotEmpty(t, opts["video_url"])
	})

	t.Run("reference drops auto ratio", func(t *testing.T) {
		opts, endpoint, _ := build(t, "kling-video-o1", generation.Params{klingO1ModeKey: klingO1ModeReference, "falKlingVideoO1AspectRatio": "auto"},
			image(100, 100), image(100, 100))
		assert.Equal(t, "fal-ai/kling-video/o1/reference-to-video", endpoint)
		assert.NotContains(t, opts, "aspect_ratio")
		assert.Len(t, opts["image_urls"], 2)
	})

	t.Run("validation", func(t *testing.T) {
		reg, err := NewRegistry()
		require.NoError(t, err)
		b := generation.NewBuilder(reg)

		_, err = b.Validate(context.Background(), &generation.BuildContext{SelectedModel: "kling-video-o1"})
		assert.ErrorIs(t, err, generation.ErrValidation)

		_, err = b.Validate(context.Background(), &generation.BuildContext{
			SelectedModel: "kling-video-o1",
			Params:        generation.Params{klingO1ModeKey: klingO1ModeEdit},
		})
		var verr *generation.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "kling-video-o1", verr.Model)
		assert.Contains(t, verr.Message, "needs an uploaded video")
	})
}

func TestPPIOMinimaxSpeech(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)
	cfg, err := reg.Get("minimax-speech-2.6")
	require.NoError(t, err)
	assert.Equal(t, generation.MediaAudio, cfg.MediaType)

	opts, endpoint, _ := build(t, "minimax-speech-2.6", generation.Params{
		"minimaxVoiceId":         "male-qn-jingying",
		"minimaxAudioSpeed":      1.2,
		"minimaxAudioFormat":     "mp3",
		"minimaxAudioSampleRate": 32000,
		"minimaxLanguageBoost":   "auto",
	})
	assert.Equal(t, "/minimax-speech-2.6-hd", endpoint)
	assert.Equal(t, "a lighthouse at dusk", opts["text"])
	assert.Equal(t, "url", opts["output_format"])
	assert.Equal(t, "auto", opts["language_boost"])
	assert.Equal(t, map[string]any{"voice_id": "male-qn-jingying", "speed": 1.2}, opts["voice_setting"])
	assert.Equal(t, map[string]any{"format": "mp3", "sample_rate": 32000}, opts["audio_setting"])

	opts, endpoint, _ = build(t, "minimax-speech-2.6", generation.Params{"minimaxAudioSpec": "turbo"})
	assert.Equal(t, "/minimax-speech-2.6-turbo", endpoint)
	assert.NotContains(t, opts, "voice_setting")

	_, endpoint, _ = build(t, "minimax-speech-2.6-hd", generation.Params{"minimaxAudioSpec": "turbo"})
	assert.Equal(t, "/minimax-speech-2.6-hd", endpoint)

	_, err = generation.NewBuilder(reg).Validate(context.Background(), &generation.BuildContext{
		SelectedModel: "minimax-speech-2.6",
		Prompt:        "  ",
	})
	assert.ErrorIs(t, err, generation.ErrValidation)
}

func TestPPIOViduQ1(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)
	_, err = generation.NewBuilder(reg).Validate(context.Background(), &generation.BuildContext{
		SelectedModel: "vidu-q1",
		Params:        generation.Params{viduModeKey: viduModeStartEnd},
		Images:        []generation.Asset{image(100, 100)},
	})
	var verr *generation.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "vidu-q1", verr.Model)

	opts, endpoint, _ := build(t, "vidu-q1", generation.Params{"ppioViduQ1AspectRatio": "16:9", "ppioViduQ1Style": "anime"})
	assert.Equal(t, "/async/vidu-q1-text2video", endpoint)
	assert.Equal(t, "16:9", opts["aspect_ratio"])
	assert.Equal(t, "anime", opts["style"])

	opts, endpoint, _ = build(t, "vidu-q1", generation.Params{"ppioViduQ1AspectRatio": "16:9"}, image(1280, 720))
	assert.Equal(t, "/async/vidu-q1-img2video", endpoint)
	assert.NotContains(t, opts, "aspect_ratio")

	opts, endpoint, _ = build(t, "vidu-q1", generation.Params{viduModeKey: viduModeReference},
		image(900, 1600), image(900, 1600), image(900, 1600))
	assert.Equal(t, "/async/vidu-q1-reference2video", endpoint)
	assert.Equal(t, "9:16", opts["aspect_ratio"])
	assert.Len(t, opts["images"], 3)
}

func TestPPIOKlingSendsBareBase64(t *testing.T) {
	opts, endpoint, _ := build(t, "kling-2.5-turbo", generation.Params{"ppioKling25AspectRatio": "16:9"}, image(1280, 720))
	assert.Equal(t, "/async/kling-2.5-turbo-i2v", endpoint)
	assert.Equal(t, "aW1n", opts["image"])
	assert.NotContains(t, opts, "aspect_ratio")

	opts, endpoint, _ = build(t, "kling-2.5-turbo", generation.Params{"ppioKling25AspectRatio": "16:9", "videoDuration": 10})
	assert.Equal(t, "/async/kling-2.5-turbo-t2v", endpoint)
	assert.Equal(t, "16:9", opts["aspect_ratio"])
	assert.Equal(t, "10", opts["duration"])
}

func TestPPIOHailuoFastNeedsImage(t *testing.T) {
	opts, endpoint, _ := build(t, "minimax-hailuo-2.3", generation.Params{"ppioHailuo23FastMode": true})
	assert.Equal(t, "/async/minimax-hailuo-2.3-t2v", endpoint)
	assert.NotContains(t, opts, "fast_pretreatment")
	assert.Equal(t, "768P", opts["resolution"])

	_, endpoint, _ = build(t, "minimax-hailuo-2.3", generation.Params{"ppioHailuo23FastMode": true}, image(10, 10))
	assert.Equal(t, "/async/minimax-hailuo-2.3-fast-i2v", endpoint)
}

func TestPPIOSeedanceVariant(t *testing.T) {
	_, endpoint, _ := build(t, "seedance-v1", generation.Params{"ppioSeedanceV1Variant": "pro"})
	assert.Equal(t, "/async/seedance-v1-pro-t2v", endpoint)

	opts, endpoint, _ := build(t, "seedance-v1-lite", generation.Params{}, image(100, 100), image(100, 100))
	assert.Equal(t, "/async/seedance-v1-lite-i2v", endpoint)
	assert.Contains(t, opts, "last_image")
}

func TestPPIOSeedreamSize(t *testing.T) {
	opts, endpoint, _ := build(t, "seedream-4.0", generation.Params{
		"selectedResolution": "16:9",
		"resolutionQuality":  "2K",
	})
	assert.Equal(t, "/seedream-4.0", endpoint)
	assert.Equal(t, "2560x1440", opts["size"])
	assert.Equal(t, "disabled", opts["sequential_image_generation"])
	assert.NotContains(t, opts, "max_images")

	opts, _, _ = build(t, "seedream-4.0", generation.Params{
		"selectedResolution":                      "smart",
		"resolutionQuality":                       "2K",
		"ppioSeedream40SequentialImageGeneration": "auto",
		"numImages":                               4,
	}, image(1920, 1080))
	assert.Equal(t, "2728x1536", opts["size"])
	assert.Equal(t, 4, opts["max_images"])
}

func TestKIEGrokOrientation(t *testing.T) {
	opts, endpoint, _ := build(t, "kie-grok-imagine-video", generation.Params{"aspectRatio": "smart"})
	assert.Equal(t, "grok-imagine/text-to-video", endpoint)
	assert.Equal(t, "landscape", opts["aspect_ratio"])

	opts, endpoint, _ = build(t, "kie-grok-imagine-video", generation.Params{"kieGrokImagineVideoMode": "spicy"}, image(720, 1280))
	assert.Equal(t, "grok-imagine/image-to-video", endpoint)
	assert.Equal(t, "portrait", opts["aspect_ratio"])
	assert.Equal(t, "normal", opts["mode"])
}

func TestKIENanoBananaProCapsImages(t *testing.T) {
	images := make([]generation.Asset, 10)
	for i := range images {
		images[i] = image(1024, 1024)
	}
	opts, endpoint, bctx := build(t, "nano-banana-pro-kie", generation.Params{}, images...)
	assert.Equal(t, "nano-banana-pro", endpoint)
	assert.Len(t, opts["image_input"], 8)
	assert.Len(t, bctx.UploadedPaths, 10)
}

func TestModelScopeSizes(t *testing.T) {
	opts, _, _ := build(t, "qwen-image", generation.Params{"aspectRatio": "16:9"})
	assert.Equal(t, "2048x1152", opts["size"])

	opts, _, _ = build(t, "Tongyi-MAI/Z-Image-Turbo", generation.Params{"aspectRatio": "1:1", "baseSize": 1024})
	assert.Equal(t, "1024x1024", opts["size"])
}

func TestOrientation(t *testing.T) {
	assert.Equal(t, "landscape", orientation("16:9", nil))
	assert.Equal(t, "portrait", orientation("9:16", nil))
	assert.Equal(t, "square", orientation("1:1", nil))
	assert.Equal(t, "portrait", orientation("portrait", nil))
	assert.Equal(t, "smart", orientation("smart", nil))
}
