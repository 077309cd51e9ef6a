package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	reg := NewRegistry()

	require.NoError(t, reg.Register(
		&ModelConfig{ID: "nano-banana", Provider: "fal", Aliases: []string{"fal-ai-nano-banana"}},
		&ModelConfig{ID: "seedream-4.0", Provider: "ppio"},
	))

	t.Run("lookup by id and alias", func(t *testing.T) {
		cfg, err := reg.Get("nano-banana")
		require.NoError(t, err)
		alias, err := reg.Get("fal-ai-nano-banana")
		require.NoError(t, err)
		assert.Same(t, cfg, alias)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := reg.Get("x")
		assert.ErrorIs(t, err, ErrModelNotFound)
	})

	t.Run("duplicates rejected", func(t *testing.T) {
		assert.Error(t, reg.Register(&ModelConfig{ID: "nano-banana"}))
		assert.Error(t, reg.Register(&ModelConfig{ID: "other", Aliases: []string{"seedream-4.0"}}))
		assert.Error(t, reg.Register(&ModelConfig{}))
	})

	t.Run("list sorted", func(t *testing.T) {
		list := reg.List()
		require.Len(t, list, 2)
		assert.Equal(t, "fal", list[0].Provider)
		assert.Equal(t, "ppio", list[1].Provider)
	})

	t.Run("frozen", func(t *testing.T) {
		reg.Freeze()
		assert.ErrorIs(t, reg.Register(&ModelConfig{ID: "late"}), ErrRegistryFrozen)
		assert.Equal(t, 2, reg.Len())
	})
}

func TestModelConfig_EndpointFor(t *testing.T) {
	cfg := &ModelConfig{Endpoint: "fal-ai/nano-banana", ImageEndpoint: "fal-ai/nano-banana/edit"}

	assert.Equal(t, "fal-ai/nano-banana", cfg.EndpointFor(nil, &BuildContext{}))
	assert.Equal(t, "fal-ai/nano-banana/edit", cfg.EndpointFor(nil, &BuildContext{Images: []Asset{{}}}))

	cfg.Route = func(opts Options, _ *BuildContext) string {
		if opts["mode"] == "pro" {
			return "pro"
		}
		return ""
	}
	assert.Equal(t, "pro", cfg.EndpointFor(Options{"mode": "pro"}, &BuildContext{}))
	assert.Equal(t, "fal-ai/nano-banana", cfg.EndpointFor(Options{}, &BuildContext{}))
}
