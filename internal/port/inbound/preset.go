package inbound

import "github.com/gin-gonic/gin"

// PresetHttpPort defines HTTP handler interface for preset operations.
type PresetHttpPort interface {
	// CreatePreset handles POST /presets
	CreatePreset(c *gin.Context)

	// ListPresets handles GET /presets
	ListPresets(c *gin.Context)

	// GetPreset handles GET /presets/:id
	GetPreset(c *gin.Context)

	// DeletePreset handles DELETE /presets/:id
	DeletePreset(c *gin.Context)
}
