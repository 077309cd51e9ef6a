package gin

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/henjicc/henji-server/internal/domain/generation"
	"github.com/henjicc/henji-server/internal/module/credential"
	"github.com/henjicc/henji-server/internal/port/inbound"
	"github.com/henjicc/henji-server/internal/port/outbound"
)

// modelAdapter implements inbound.ModelHttpPort.
type modelAdapter struct {
	registry  *generation.Registry
	providers outbound.MediaProviderResolverPort
}

// NewModelAdapter creates a new catalog HTTP adapter. providers, when set, is used to
// report whether a model's provider is ready to accept work.
func NewModelAdapter(registry *generation.Registry, providers outbound.MediaProviderResolverPort) inbound.ModelHttpPort {
	return &modelAdapter{registry: registry, providers: providers}
}

// ModelResponse describes one catalog entry.
type ModelResponse struct {
	ID          string               `json:"id"`
	Name        string               `json:"name,omitempty"`
	MediaType   generation.MediaType `json:"media_type"`
	Provider    string               `json:"provider"`
	Aliases     []string             `json:"aliases,omitempty"`
	Configured  bool                 `json:"configured"`
	SmartMatch  []string             `json:"smart_match,omitempty"`
	MaxImages   int                  `json:"max_images,omitempty"`
	VideoUpload bool                 `json:"video_upload,omitempty"`
	Modes       []string             `json:"modes,omitempty"`
	ModeParam   string               `json:"mode_param,omitempty"`
}

// NewModelResponse projects a model configuration for clients.
func NewModelResponse(cfg *generation.ModelConfig) *ModelResponse {
	resp := &ModelResponse{
		ID:        cfg.ID,
		Name:      cfg.Name,
		MediaType: cfg.MediaType,
		Provider:  cfg.Provider,
		Aliases:   cfg.Aliases,
	}
	f := cfg.Features
	if f.SmartMatch != nil {
		resp.SmartMatch = f.SmartMatch.Options
	}
	if f.ImageUpload != nil {
		resp.MaxImages = f.ImageUpload.MaxImages
		if resp.MaxImages == 0 {
			resp.MaxImages = 1
		}
	}
	resp.VideoUpload = f.VideoUpload != nil
	if f.ModeSwitch != nil {
		resp.ModeParam = f.ModeSwitch.ModeParamKey
		for mode := range f.ModeSwitch.Configs {
			resp.Modes = append(resp.Modes, mode)
		}
		slices.Sort(resp.Modes)
	}
	return resp
}

func (a *modelAdapter) render(ctx context.Context, cfg *generation.ModelConfig, ready map[string]bool) *ModelResponse {
	resp := NewModelResponse(cfg)
	if a.providers == nil {
		return resp
	}
	ok, seen := ready[cfg.Provider]
	if !seen {
		_, err := a.providers.Resolve(ctx, cfg.Provider)
		ok = err == nil
		ready[cfg.Provider] = ok
	}
	resp.Configured = ok
	return resp
}

// ListModels lists the model catalog.
//
//	@Summary		List models
//	@Tags			Models
//	@Produce		json
//	@Security		BearerAuth
//	@Param			media_type	query		string	false	"image, video or audio"
//	@Param			provider	query		string	false	"Provider id"
//	@Success		200			{object}	map[string]interface{}
//	@Router			/models [get]
func (a *modelAdapter) ListModels(c *gin.Context) {
	mediaType := generation.MediaType(c.Query("media_type"))
	provider := c.Query("provider")

	ready := make(map[string]bool)
	var resp []*ModelResponse
	for _, cfg := range a.registry.List() {
		if mediaType != "" && cfg.MediaType != mediaType {
			continue
		}
		if provider != "" && cfg.Provider != provider {
			continue
		}
		resp = append(resp, a.render(c.Request.Context(), cfg, ready))
	}
	c.JSON(http.StatusOK, gin.H{"models": resp, "total": len(resp)})
}

// GetModel returns one model by id or alias.
//
//	@Summary		Get model
//	@Tags			Models
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string	true	"Model ID or alias"
//	@Success		200	{object}	ModelResponse
//	@Failure		404	{object}	errors.ErrorResponse
//	@Router			/models/{id} [get]
func (a *modelAdapter) GetModel(c *gin.Context) {
	cfg, err := a.registry.Get(strings.TrimPrefix(c.Param("id"), "/"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, a.render(c.Request.Context(), cfg, make(map[string]bool)))
}

// CredentialService is the credential module surface the HTTP layer drives.
type CredentialService interface {
	List(ctx context.Context) ([]credential.Status, error)
	Set(ctx context.Context, provider, apiKey string) error
	Clear(ctx context.Context, provider string) error
}

// credentialAdapter implements inbound.CredentialHttpPort.
type credentialAdapter struct {
	credentials CredentialService
}

// NewCredentialAdapter creates a new credential HTTP adapter.
func NewCredentialAdapter(credentials CredentialService) inbound.CredentialHttpPort {
	return &credentialAdapter{credentials: credentials}
}

// SetCredentialRequest is the body of PUT /credentials/:provider.
type SetCredentialRequest struct {
	APIKey string `json:"api_key" binding:"required"`
}

// ListCredentials reports which providers have keys, without revealing them.
//
//	@Summary		List credentials
//	@Tags			Credentials
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	map[string]interface{}
//	@Router			/credentials [get]
func (a *credentialAdapter) ListCredentials(c *gin.Context) {
	statuses, err := a.credentials.List(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"credentials": statuses})
}

// SetCredential stores an encrypted provider key.
//
//	@Summary		Set credential
//	@Tags			Credentials
//	@Accept			json
//	@Security		BearerAuth
//	@Param			provider	path	string					true	"Provider id"
//	@Param			request		body	SetCredentialRequest	true	"API key"
//	@Success		204
//	@Failure		400	{object}	errors.ErrorResponse
//	@Failure		404	{object}	errors.ErrorResponse	"Unknown provider"
//	@Failure		412	{object}	errors.ErrorResponse	"Master key not configured"
//	@Router			/credentials/{provider} [put]
func (a *credentialAdapter) SetCredential(c *gin.Context) {
	var req SetCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := a.credentials.Set(c.Request.Context(), c.Param("provider"), req.APIKey); err != nil {
		handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ClearCredential removes a stored provider key. Configured keys still apply.
//
//	@Summary		Clear credential
//	@Tags			Credentials
//	@Security		BearerAuth
//	@Param			provider	path	string	true	"Provider id"
//	@Success		204
//	@Failure		404	{object}	errors.ErrorResponse	"Unknown provider"
//	@Router			/credentials/{provider} [delete]
func (a *credentialAdapter) ClearCredential(c *gin.Context) {
	if err := a.credentials.Clear(c.Request.Context(), c.Param("provider")); err != nil {
		handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
