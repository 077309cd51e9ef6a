// Package generation turns uniform request parameters into provider specific payloads.
//
// A ModelConfig is pure data: a table of ParamRules plus optional features and hooks.
// The Builder interprets it; per-provider tables live in the catalog module.
package generation

import (
	"context"
)

// MediaType is the kind of artifact a model produces.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
	MediaAudio MediaType = "audio"
)

// UploadMode selects how many uploaded assets are materialized.
type UploadMode string

const (
	UploadSingle   UploadMode = "single"
	UploadMultiple UploadMode = "multiple"
)

// Default option keys used when an upload feature does not name one.
const (
	DefaultImageParamKey = "image_url"
	DefaultVideoParamKey = "video_url"
)

// SmartMatchConfig matches the first uploaded image against Options and writes the
// chosen token into ParamKey.
type SmartMatchConfig struct {
	ParamKey     string
	DefaultRatio string
	Options      []string
}

// ImageUploadConfig materializes uploaded images into ParamKey.
type ImageUploadConfig struct {
	ParamKey  string
	Mode      UploadMode
	MaxImages int
	// Binary sends raw bytes instead of data URLs.
	Binary bool
}

// VideoUploadConfig materializes the first uploaded video into ParamKey.
type VideoUploadConfig struct {
	ParamKey string
	Binary   bool
}

// ModeConfig overrides part of a ModelConfig for one mode value.
type ModeConfig struct {
	ParamMapping map[string]ParamRule
	Features     Features
}

// ModeSwitchConfig selects a ModeConfig by the value of Params[ModeParamKey].
type ModeSwitchConfig struct {
	ModeParamKey string
	Configs      map[string]ModeConfig
}

// Features are the optional build stages of a model. A nil field is disabled.
type Features struct {
	SmartMatch  *SmartMatchConfig
	ImageUpload *ImageUploadConfig
	VideoUpload *VideoUploadConfig
	ModeSwitch  *ModeSwitchConfig
}

// Hooks are the per-model escape hatches around the declarative stages.
type Hooks struct {
	// BeforeBuild may normalize Params before validation.
	BeforeBuild func(ctx context.Context, bctx *BuildContext) error
	// ValidateParams rejects a request before any side effect happens.
	ValidateParams func(bctx *BuildContext) error
	// AfterBuild runs last and may persist uploads or inject computed fields.
	AfterBuild func(ctx context.Context, opts Options, bctx *BuildContext) error
}

// ModelConfig identifies one provider/model pair and how to build its payload.
type ModelConfig struct {
	ID        string
	Name      string
	MediaType MediaType
	Provider  string
	Aliases   []string

	// Endpoint is the provider route for a build; ImageEndpoint replaces it when the
	// request carries uploaded images. Route, when set, wins over both.
	Endpoint      string
	ImageEndpoint string
	Route         func(opts Options, bctx *BuildContext) string

	ParamMapping map[string]ParamRule
	Features     Features
	Hooks        Hooks
}

// EndpointFor returns the provider route for built options.
func (c *ModelConfig) EndpointFor(opts Options, bctx *BuildContext) string {
	if c.Route != nil {
		if ep := c.Route(opts, bctx); ep != "" {
			return ep
		}
	}
	if c.ImageEndpoint != "" && bctx != nil && len(bctx.Images) > 0 {
		return c.ImageEndpoint
	}
	return c.Endpoint
}

// Merge overlays override on base. Param rules merge per key and features per stage,
// override winning in both cases. Neither input is modified.
func Merge(base *ModelConfig, override ModeConfig) *ModelConfig {
	merged := *base

	merged.ParamMapping = make(map[string]ParamRule, len(base.ParamMapping)+len(override.ParamMapping))
	for k, v := range base.ParamMapping {
		merged.ParamMapping[k] = v
	}
	for k, v := range override.ParamMapping {
		merged.ParamMapping[k] = v
	}

	if override.Features.SmartMatch != nil {
		merged.Features.SmartMatch = override.Features.SmartMatch
	}
	if override.Features.ImageUpload != nil {
		merged.Features.ImageUpload = override.Features.ImageUpload
	}
	if override.Features.VideoUpload != nil {
		merged.Features.VideoUpload = override.Features.VideoUpload
	}
	if override.Features.ModeSwitch != nil {
		merged.Features.ModeSwitch = override.Features.ModeSwitch
	}

	return &merged
}

// ResolveMode returns the effective config for the mode selected in params. A missing
// or unknown mode yields base unchanged.
func ResolveMode(base *ModelConfig, params Params) *ModelConfig {
	ms := base.Features.ModeSwitch
	if ms == nil {
		return base
	}
	mode, _ := params[ms.ModeParamKey].(string)
	if mode == "" {
		return base
	}
	override, ok := ms.Configs[mode]
	if !ok {
		return base
	}
	return Merge(base, override)
}
