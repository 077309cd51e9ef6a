package gin

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/henjicc/henji-server/internal/domain/asset"
	"github.com/henjicc/henji-server/internal/domain/generation"
	"github.com/henjicc/henji-server/internal/domain/preset"
	"github.com/henjicc/henji-server/internal/infra/task"
	"github.com/henjicc/henji-server/internal/module/credential"
	"github.com/henjicc/henji-server/internal/port/outbound"
	apperrors "github.com/henjicc/henji-server/internal/shared/errors"
)

// toAppError maps domain errors to HTTP errors.
func toAppError(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, generation.ErrModelNotFound):
		return apperrors.ConfigurationError(err.Error())
	case errors.Is(err, generation.ErrValidation):
		return apperrors.ValidationError(err.Error())
	case errors.Is(err, task.ErrCredentialMissing), errors.Is(err, outbound.ErrProviderNotConfigured):
		return apperrors.CredentialError(err.Error())
	case errors.Is(err, task.ErrTaskNotFound):
		return apperrors.NotFound("task")
	case errors.Is(err, task.ErrNotResumable):
		return apperrors.Conflict(err.Error())
	case errors.Is(err, task.ErrStopped):
		return apperrors.NewAppError("UNAVAILABLE", "server is shutting down", http.StatusServiceUnavailable, err)
	case errors.Is(err, preset.ErrPresetNotFound):
		return apperrors.NotFound("preset")
	case errors.Is(err, preset.ErrInvalidName),
		errors.Is(err, preset.ErrInvalidSaveMode),
		errors.Is(err, preset.ErrMissingModel):
		return apperrors.BadRequest(err.Error())
	case errors.Is(err, asset.ErrInvalidPath):
		return apperrors.BadRequest(err.Error())
	case errors.Is(err, outbound.ErrAssetNotFound):
		return apperrors.NotFound("file")
	case errors.Is(err, credential.ErrUnknownProvider):
		return apperrors.NotFound("provider")
	case errors.Is(err, credential.ErrEmptyKey):
		return apperrors.BadRequest(err.Error())
	case errors.Is(err, credential.ErrNoMasterKey):
		return apperrors.CredentialError("storing credentials requires auth.master_key")
	default:
		return apperrors.Internal("", err)
	}
}

// handleError writes err as a JSON error response. Server side failures are also
// attached to the context so the logging middleware records the cause.
func handleError(c *gin.Context, err error) {
	appErr := toAppError(err)
	if appErr.StatusCode >= 500 {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(appErr.StatusCode, appErr.ToResponse())
}

func badRequest(c *gin.Context, message string) {
	handleError(c, apperrors.BadRequest(message))
}
