package gin

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/henjicc/henji-server/internal/domain/generation"
	"github.com/henjicc/henji-server/internal/domain/preset"
	"github.com/henjicc/henji-server/internal/infra/task"
	"github.com/henjicc/henji-server/internal/port/inbound"
	"github.com/henjicc/henji-server/internal/port/outbound"
)

// PresetService is the preset domain surface the HTTP layer drives.
type PresetService interface {
	Create(ctx context.Context, in *preset.CreateInput) (*preset.Preset, error)
	Get(ctx context.Context, id uuid.UUID) (*preset.Preset, error)
	List(ctx context.Context) []*preset.Preset
	Delete(ctx context.Context, id uuid.UUID) error
}

// presetAdapter implements inbound.PresetHttpPort.
type presetAdapter struct {
	presets PresetService
	assets  outbound.AssetStoragePort
	decoder *assetDecoder
}

// NewPresetAdapter creates a new preset HTTP adapter.
func NewPresetAdapter(presets PresetService, assets outbound.AssetStoragePort, inspector task.Inspector, maxUploadBytes int64) inbound.PresetHttpPort {
	return &presetAdapter{
		presets: presets,
		assets:  assets,
		decoder: &assetDecoder{store: assets, inspector: inspector, maxSize: maxUploadBytes},
	}
}

// CreatePresetRequest is the body of POST /presets.
type CreatePresetRequest struct {
	Name     string           `json:"name" binding:"required"`
	Prompt   string           `json:"prompt"`
	SaveMode preset.SaveMode  `json:"save_mode"`
	Images   []assetInput     `json:"images,omitempty"`
	Model    *preset.ModelRef `json:"model,omitempty"`
	Params   map[string]any   `json:"params,omitempty"`
}

// PresetResponse is a preset with browser loadable image URLs.
type PresetResponse struct {
	*preset.Preset
	ImageURLs []string `json:"image_urls,omitempty"`
}

func (a *presetAdapter) render(ctx context.Context, p *preset.Preset) *PresetResponse {
	resp := &PresetResponse{Preset: p}
	for _, path := range p.FilePaths() {
		if u, err := a.assets.DisplayURL(ctx, path); err == nil {
			resp.ImageURLs = append(resp.ImageURLs, u)
		}
	}
	return resp
}

func parsePresetID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid preset id")
		return uuid.Nil, false
	}
	return id, true
}

// CreatePreset saves a preset.
//
//	@Summary		Create preset
//	@Tags			Presets
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		CreatePresetRequest	true	"Preset"
//	@Success		201		{object}	PresetResponse
//	@Failure		400		{object}	errors.ErrorResponse
//	@Router			/presets [post]
func (a *presetAdapter) CreatePreset(c *gin.Context) {
	var req CreatePresetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	images, err := a.decoder.decode(ctx, req.Images, false)
	if err != nil {
		handleError(c, err)
		return
	}

	p, err := a.presets.Create(ctx, &preset.CreateInput{
		Name:     req.Name,
		Prompt:   req.Prompt,
		SaveMode: req.SaveMode,
		Images:   images,
		Model:    req.Model,
		Params:   generation.Params(req.Params),
	})
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a.render(ctx, p))
}

// ListPresets lists presets newest first.
//
//	@Summary		List presets
//	@Tags			Presets
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	map[string]interface{}
//	@Router			/presets [get]
func (a *presetAdapter) ListPresets(c *gin.Context) {
	ctx := c.Request.Context()
	presets := a.presets.List(ctx)
	resp := make([]*PresetResponse, len(presets))
	for i, p := range presets {
		resp[i] = a.render(ctx, p)
	}
	c.JSON(http.StatusOK, gin.H{"presets": resp, "total": len(resp)})
}

// GetPreset returns one preset.
//
//	@Summary		Get preset
//	@Tags			Presets
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string	true	"Preset ID"
//	@Success		200	{object}	PresetResponse
//	@Failure		404	{object}	errors.ErrorResponse
//	@Router			/presets/{id} [get]
func (a *presetAdapter) GetPreset(c *gin.Context) {
	id, ok := parsePresetID(c)
	if !ok {
		return
	}
	p, err := a.presets.Get(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, a.render(c.Request.Context(), p))
}

// DeletePreset removes a preset and the images only it referenced.
//
//	@Summary		Delete preset
//	@Tags			Presets
//	@Security		BearerAuth
//	@Param			id	path	string	true	"Preset ID"
//	@Success		204
//	@Failure		404	{object}	errors.ErrorResponse
//	@Router			/presets/{id} [delete]
func (a *presetAdapter) DeletePreset(c *gin.Context) {
	id, ok := parsePresetID(c)
	if !ok {
		return
	}
	if err := a.presets.Delete(c.Request.Context(), id); err != nil {
		handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
