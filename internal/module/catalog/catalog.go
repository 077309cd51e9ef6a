// Package catalog declares the model tables of every supported provider.
//
// Each table maps the uniform UI parameters onto the provider's wire payload. Keys of a
// ParamMapping are wire keys; adapters send the built options as the request body.
package catalog

import (
	"fmt"

	"github.com/henjicc/henji-server/internal/domain/generation"
)

// Provider ids.
const (
	ProviderFal        = "fal"
	ProviderPPIO       = "ppio"
	ProviderKIE        = "kie"
	ProviderModelScope = "modelscope"
)

// Providers lists every provider id with at least one model.
var Providers = []string{ProviderFal, ProviderPPIO, ProviderKIE, ProviderModelScope}

// Models returns a fresh copy of every model config.
func Models() []*generation.ModelConfig {
	var out []*generation.ModelConfig
	out = append(out, falModels()...)
	out = append(out, ppioModels()...)
	out = append(out, kieModels()...)
	out = append(out, modelscopeModels()...)
	return out
}

// Register adds every model to reg.
func Register(reg *generation.Registry) error {
	if err := reg.Register(Models()...); err != nil {
		return fmt.Errorf("register catalog: %w", err)
	}
	return nil
}

// NewRegistry returns a frozen registry holding the whole catalog.
func NewRegistry() (*generation.Registry, error) {
	reg := generation.NewRegistry()
	if err := Register(reg); err != nil {
		return nil, err
	}
	reg.Freeze()
	return reg, nil
}
