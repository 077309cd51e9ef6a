// Package preset stores reusable prompt bundles. Preset images are stored assets and
// share their lifecycle with task uploads.
package preset

import (
	"time"

	"github.com/google/uuid"

	"github.com/henjicc/henji-server/internal/domain/generation"
)

// SaveMode decides which optional parts of a preset are kept.
type SaveMode string

const (
	SaveModePrompt      SaveMode = "prompt"
	SaveModePromptImage SaveMode = "prompt-image"
	SaveModeFull        SaveMode = "full"
)

// IsValid checks if the save mode is known.
func (m SaveMode) IsValid() bool {
	switch m {
	case SaveModePrompt, SaveModePromptImage, SaveModeFull:
		return true
	}
	return false
}

// Images lists the stored source images of a preset.
type Images struct {
	FilePaths []string `json:"file_paths"`
}

// ModelRef identifies the model a full preset was saved with.
type ModelRef struct {
	Provider  string               `json:"provider"`
	ModelID   string               `json:"model_id"`
	MediaType generation.MediaType `json:"media_type"`
}

// Preset is a named prompt bundle.
type Preset struct {
	ID        uuid.UUID         `json:"id"`
	Name      string            `json:"name"`
	Prompt    string            `json:"prompt"`
	SaveMode  SaveMode          `json:"save_mode"`
	Images    *Images           `json:"images,omitempty"`
	Model     *ModelRef         `json:"model,omitempty"`
	Params    generation.Params `json:"params,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// FilePaths returns the stored paths the preset holds.
func (p *Preset) FilePaths() []string {
	if p.Images == nil {
		return nil
	}
	return p.Images.FilePaths
}

// Clone returns a deep enough copy to hand out of the domain lock.
func (p *Preset) Clone() *Preset {
	c := *p
	if p.Images != nil {
		c.Images = &Images{FilePaths: append([]string(nil), p.Images.FilePaths...)}
	}
	if p.Model != nil {
		m := *p.Model
		c.Model = &m
	}
	c.Params = p.Params.Clone()
	return &c
}

// CreateInput is a preset creation request. Image data is persisted on create; images
// that already carry a Path are shared, not copied.
type CreateInput struct {
	Name     string
	Prompt   string
	SaveMode SaveMode
	Images   []generation.Asset
	Model    *ModelRef
	Params   generation.Params
}
