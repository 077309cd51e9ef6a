package generation

import (
	"errors"
	"fmt"
)

var (
	// ErrModelNotFound is returned when no configuration is registered for a model id.
	ErrModelNotFound = errors.New("no configuration found for model")

	// ErrValidation is wrapped by every ValidationError.
	ErrValidation = errors.New("invalid parameters")

	// ErrRegistryFrozen is returned when registering after the registry was frozen.
	ErrRegistryFrozen = errors.New("model registry is frozen")
)

// ValidationError reports a request rejected by a model's validator.
type ValidationError struct {
	Model   string
	Message string
}

// Error implements error.
func (e *ValidationError) Error() string {
	return e.Message
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError formats a ValidationError for model.
func NewValidationError(model, format string, args ...any) *ValidationError {
	return &ValidationError{Model: model, Message: fmt.Sprintf(format, args...)}
}

func modelNotFound(id string) error {
	return fmt.Errorf("%w: %s", ErrModelNotFound, id)
}
