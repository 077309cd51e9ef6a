package app

import (
	"github.com/henjicc/henji-server/internal/infra/config"
)

// LoadConfig loads application configuration from file, or from the default search
// path when file is empty.
func LoadConfig(file string) (*config.Config, *config.Loader, error) {
	loader := config.NewLoader(file)
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, loader, nil
}
