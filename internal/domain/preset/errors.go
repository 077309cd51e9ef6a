package preset

import "errors"

// Domain errors for the preset module.
var (
	ErrPresetNotFound  = errors.New("preset not found")
	ErrInvalidName     = errors.New("preset name is required")
	ErrInvalidSaveMode = errors.New("invalid save mode")
	ErrMissingModel    = errors.New("full presets require a model")
)
