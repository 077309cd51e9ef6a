package generation

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySink struct {
	saved []Asset
	fail  error
}

func (s *memorySink) Persist(_ context.Context, a Asset) (string, error) {
	if s.fail != nil {
		return "", s.fail
	}
	s.saved = append(s.saved, a)
	return fmt.Sprintf("/uploads/%d%s", len(s.saved), a.Ext()), nil
}

func orientation(v any, _ *BuildContext) any {
	switch v {
	case "16:9":
		return "landscape"
	case "9:16":
		return "portrait"
	}
	return v
}

func testRegistry(t *testing.T, cfgs ...*ModelConfig) *Builder {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, reg.Register(cfgs...))
	reg.Freeze()
	return NewBuilder(reg)
}

func TestBuilder_UnknownModel(t *testing.T) {
	b := testRegistry(t)

	_, _, err := b.Build(context.Background(), &BuildContext{SelectedModel: "nope"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrModelNotFound))
}

func TestBuilder_ParamMapping(t *testing.T) {
	b := testRegistry(t, &ModelConfig{
		ID:       "m",
		Provider: "fal",
		ParamMapping: map[string]ParamRule{
			"num_images": From("falNumImages", "numImages").WithDefault(1),
			"seed":       Key("seed"),
			"variant":    Key("variant").When(func(c *BuildContext) bool { return c.SelectedModel == "other" }),
		},
	})

	opts, cfg, err := b.Build(context.Background(), &BuildContext{
		SelectedModel: "m",
		Params:        Params{"numImages": 4, "variant": "pro"},
	})

	require.NoError(t, err)
	assert.Equal(t, "m", cfg.ID)
	assert.Equal(t, Options{"num_images": 4}, opts)
}

func TestBuilder_ValidationStopsBeforeSideEffects(t *testing.T) {
	sink := &memorySink{}
	afterCalled := false
	b := testRegistry(t, &ModelConfig{
		ID: "m",
		Hooks: Hooks{
			ValidateParams: func(c *BuildContext) error {
				if len(c.Images) < 2 {
					return NewValidationError(c.SelectedModel, "need at least 2 images")
				}
				return nil
			},
			AfterBuild: func(ctx context.Context, _ Options, c *BuildContext) error {
				afterCalled = true
				_, err := c.PersistImages(ctx)
				return err
			},
		},
	})

	_, _, err := b.Build(context.Background(), &BuildContext{
		SelectedModel: "m",
		Images:        []Asset{{Data: []byte{1}, MIMEType: "image/png"}},
		Assets:        sink,
	})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "need at least 2 images", verr.Message)
	assert.False(t, afterCalled)
	assert.Empty(t, sink.saved)
}

func TestBuilder_PlainValidatorErrorBecomesValidationError(t *testing.T) {
	b := testRegistry(t, &ModelConfig{
		ID: "m",
		Hooks: Hooks{
			ValidateParams: func(*BuildContext) error {
				return fmt.Errorf("duration %d out of range", 99)
			},
		},
	})

	_, _, err := b.Build(context.Background(), &BuildContext{SelectedModel: "m"})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "m", verr.Model)
	assert.Equal(t, "duration 99 out of range", verr.Message)
}

func TestBuilder_BeforeBuildMutatesParams(t *testing.T) {
	b := testRegistry(t, &ModelConfig{
		ID:           "m",
		ParamMapping: map[string]ParamRule{"duration": Key("duration")},
		Hooks: Hooks{
			BeforeBuild: func(_ context.Context, c *BuildContext) error {
				if d, ok := c.Params.Int("duration"); ok && d > 10 {
					c.Params["duration"] = 10
				}
				return nil
			},
		},
	})

	params := Params{"duration": 30}
	opts, _, err := b.Build(context.Background(), &BuildContext{SelectedModel: "m", Params: params})
	require.NoError(t, err)
	assert.Equal(t, 10, opts["duration"])

	_, err = b.Validate(context.Background(), &BuildContext{SelectedModel: "m", Params: Params{"duration": 30}})
	require.NoError(t, err)
}

func TestBuilder_Validate_DoesNotMutateCaller(t *testing.T) {
	b := testRegistry(t, &ModelConfig{
		ID: "m",
		Hooks: Hooks{
			BeforeBuild: func(_ context.Context, c *BuildContext) error {
				c.Params["x"] = "changed"
				return nil
			},
		},
	})

	params := Params{"x": "orig"}
	_, err := b.Validate(context.Background(), &BuildContext{SelectedModel: "m", Params: params})

	require.NoError(t, err)
	assert.Equal(t, "orig", params["x"])
}

func TestBuilder_ModeSwitch(t *testing.T) {
	noImages := func(c *BuildContext) bool { return len(c.Images) == 0 }
	b := testRegistry(t, &ModelConfig{
		ID: "vidu",
		ParamMapping: map[string]ParamRule{
			"mode":     Key("mode"),
			"duration": Key("duration").WithDefault(5),
		},
		Features: Features{
			ImageUpload: &ImageUploadConfig{ParamKey: "images", Mode: UploadSingle},
			ModeSwitch: &ModeSwitchConfig{
				ModeParamKey: "mode",
				Configs: map[string]ModeConfig{
					"text-image-to-video": {
						ParamMapping: map[string]ParamRule{
							"aspect_ratio": Key("aspectRatio").When(noImages),
						},
					},
					"start-end-frame": {
						Features: Features{
							ImageUpload: &ImageUploadConfig{ParamKey: "images", Mode: UploadMultiple, MaxImages: 2},
						},
					},
				},
			},
		},
	})

	imgs := []Asset{{Data: []byte{1}}, {Data: []byte{2}}, {Data: []byte{3}}}

	t.Run("base when mode missing", func(t *testing.T) {
		opts, _, err := b.Build(context.Background(), &BuildContext{SelectedModel: "vidu", Params: Params{"aspectRatio": "1:1"}})
		require.NoError(t, err)
		assert.Equal(t, Options{"duration": 5}, opts)
	})

	t.Run("unknown mode uses base", func(t *testing.T) {
		opts, _, err := b.Build(context.Background(), &BuildContext{SelectedModel: "vidu", Params: Params{"mode": "x"}})
		require.NoError(t, err)
		assert.NotContains(t, opts, "aspect_ratio")
	})

	t.Run("mode adds conditional key", func(t *testing.T) {
		opts, _, err := b.Build(context.Background(), &BuildContext{
			SelectedModel: "vidu",
			Params:        Params{"mode": "text-image-to-video", "aspectRatio": "16:9"},
		})
		require.NoError(t, err)
		assert.Equal(t, "16:9", opts["aspect_ratio"])
	})

	t.Run("condition fails with images", func(t *testing.T) {
		opts, _, err := b.Build(context.Background(), &BuildContext{
			SelectedModel: "vidu",
			Params:        Params{"mode": "text-image-to-video", "aspectRatio": "16:9"},
			Images:        imgs,
		})
		require.NoError(t, err)
		assert.NotContains(t, opts, "aspect_ratio")
		assert.IsType(t, "", opts["images"])
	})

	t.Run("mode overrides feature", func(t *testing.T) {
		opts, _, err := b.Build(context.Background(), &BuildContext{
			SelectedModel: "vidu",
			Params:        Params{"mode": "start-end-frame"},
			Images:        imgs,
		})
		require.NoError(t, err)
		assert.Len(t, opts["images"], 2)
	})
}

func TestMerge_IsPure(t *testing.T) {
	base := &ModelConfig{
		ID:           "m",
		ParamMapping: map[string]ParamRule{"a": Key("a"), "b": Key("b")},
		Features:     Features{SmartMatch: &SmartMatchConfig{ParamKey: "ar"}},
	}
	override := ModeConfig{
		ParamMapping: map[string]ParamRule{"b": Key("bb"), "c": Key("c")},
		Features:     Features{ImageUpload: &ImageUploadConfig{ParamKey: "img"}},
	}

	merged := Merge(base, override)

	assert.Len(t, merged.ParamMapping, 3)
	assert.Equal(t, []string{"bb"}, merged.ParamMapping["b"].Source)
	assert.Equal(t, "ar", merged.Features.SmartMatch.ParamKey)
	assert.Equal(t, "img", merged.Features.ImageUpload.ParamKey)

	assert.Len(t, base.ParamMapping, 2)
	assert.Equal(t, []string{"b"}, base.ParamMapping["b"].Source)
	assert.Nil(t, base.Features.ImageUpload)
}

func TestBuilder_SmartMatch(t *testing.T) {
	b := testRegistry(t, &ModelConfig{
		ID: "grok",
		ParamMapping: map[string]ParamRule{
			"aspect_ratio": Key("aspectRatio").WithDefault("16:9").WithTransform(orientation),
		},
		Features: Features{
			SmartMatch: &SmartMatchConfig{
				ParamKey:     "aspect_ratio",
				DefaultRatio: "16:9",
				Options:      []string{"smart", "16:9", "9:16"},
			},
		},
	})

	t.Run("matched then transformed", func(t *testing.T) {
		opts, _, err := b.Build(context.Background(), &BuildContext{
			SelectedModel: "grok",
			Params:        Params{"aspectRatio": "smart"},
			Images:        []Asset{{Width: 1080, Height: 1920}},
		})
		require.NoError(t, err)
		assert.Equal(t, "portrait", opts["aspect_ratio"])
	})

	t.Run("no image keeps explicit choice", func(t *testing.T) {
		opts, _, err := b.Build(context.Background(), &BuildContext{
			SelectedModel: "grok",
			Params:        Params{"aspectRatio": "9:16"},
		})
		require.NoError(t, err)
		assert.Equal(t, "portrait", opts["aspect_ratio"])
	})

	t.Run("no image replaces sentinel with default", func(t *testing.T) {
		opts, _, err := b.Build(context.Background(), &BuildContext{
			SelectedModel: "grok",
			Params:        Params{"aspectRatio": "smart"},
		})
		require.NoError(t, err)
		assert.Equal(t, "landscape", opts["aspect_ratio"])
	})

	t.Run("unknown dimensions fall back to default", func(t *testing.T) {
		opts, _, err := b.Build(context.Background(), &BuildContext{
			SelectedModel: "grok",
			Images:        []Asset{{}},
		})
		require.NoError(t, err)
		assert.Equal(t, "landscape", opts["aspect_ratio"])
	})
}

func TestBuilder_Uploads(t *testing.T) {
	b := testRegistry(t,
		&ModelConfig{
			ID:       "single",
			Features: Features{ImageUpload: &ImageUploadConfig{Mode: UploadSingle}},
		},
		&ModelConfig{
			ID:       "multi",
			Features: Features{ImageUpload: &ImageUploadConfig{ParamKey: "image_input", Mode: UploadMultiple, MaxImages: 2, Binary: true}},
		},
		&ModelConfig{
			ID:       "video",
			Features: Features{VideoUpload: &VideoUploadConfig{}},
		},
	)
	imgs := []Asset{
		{Data: []byte("a"), MIMEType: "image/png"},
		{Data: []byte("b"), MIMEType: "image/png"},
		{Data: []byte("c"), MIMEType: "image/png"},
	}

	opts, _, err := b.Build(context.Background(), &BuildContext{SelectedModel: "single", Images: imgs})
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,YQ==", opts[DefaultImageParamKey])

	opts, _, err = b.Build(context.Background(), &BuildContext{SelectedModel: "multi", Images: imgs})
	require.NoError(t, err)
	assert.Equal(t, []any{[]byte("a"), []byte("b")}, opts["image_input"])

	opts, _, err = b.Build(context.Background(), &BuildContext{
		SelectedModel: "video",
		Videos:        []Asset{{Data: []byte("v"), MIMEType: "video/mp4"}, {Data: []byte("w")}},
	})
	require.NoError(t, err)
	assert.Equal(t, "data:video/mp4;base64,dg==", opts[DefaultVideoParamKey])

	opts, _, err = b.Build(context.Background(), &BuildContext{SelectedModel: "single"})
	require.NoError(t, err)
	assert.Empty(t, opts)
}

func TestBuilder_AfterBuildPersists(t *testing.T) {
	sink := &memorySink{}
	b := testRegistry(t, &ModelConfig{
		ID: "m",
		Hooks: Hooks{
			AfterBuild: func(ctx context.Context, opts Options, c *BuildContext) error {
				paths, err := c.PersistImages(ctx)
				if err != nil {
					return err
				}
				opts["paths"] = paths
				return nil
			},
		},
	})

	bctx := &BuildContext{
		SelectedModel: "m",
		Images:        []Asset{{Data: []byte{1}, MIMEType: "image/png"}, {Path: "/uploads/existing.png"}},
		Assets:        sink,
	}
	opts, _, err := b.Build(context.Background(), bctx)

	require.NoError(t, err)
	assert.Equal(t, []string{"/uploads/1.png", "/uploads/existing.png"}, opts["paths"])
	assert.Len(t, sink.saved, 1)
	assert.Equal(t, []string{"/uploads/1.png", "/uploads/existing.png"}, bctx.UploadedPaths)

	sink.fail = errors.New("disk full")
	_, _, err = b.Build(context.Background(), &BuildContext{
		SelectedModel: "m",
		Images:        []Asset{{Data: []byte{1}}},
		Assets:        sink,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}
