package generation

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps model ids and aliases to their configs.
// It is filled once at startup, then frozen and only read.
type Registry struct {
	mu      sync.RWMutex
	configs map[string]*ModelConfig
	aliases map[string]string
	frozen  bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		configs: make(map[string]*ModelConfig),
		aliases: make(map[string]string),
	}
}

// Register adds configs. Ids and aliases must be unique across the registry.
func (r *Registry) Register(configs ...*ModelConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return ErrRegistryFrozen
	}
	for _, cfg := range configs {
		if cfg.ID == "" {
			return fmt.Errorf("register model: empty id")
		}
		if r.taken(cfg.ID) {
			return fmt.Errorf("register model %s: duplicate id", cfg.ID)
		}
		for _, alias := range cfg.Aliases {
			if alias == cfg.ID {
				continue
			}
			if r.taken(alias) {
				return fmt.Errorf("register model %s: duplicate alias %s", cfg.ID, alias)
			}
		}
		r.configs[cfg.ID] = cfg
		for _, alias := range cfg.Aliases {
			if alias != cfg.ID {
				r.aliases[alias] = cfg.ID
			}
		}
	}
	return nil
}

func (r *Registry) taken(id string) bool {
	_, isID := r.configs[id]
	_, isAlias := r.aliases[id]
	return isID || isAlias
}

// MustRegister is Register that panics, for static tables.
func (r *Registry) MustRegister(configs ...*ModelConfig) {
	if err := r.Register(configs...); err != nil {
		panic(err)
	}
}

// Freeze makes the registry read-only.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Get looks up a config by id or alias.
func (r *Registry) Get(id string) (*ModelConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if cfg, ok := r.configs[id]; ok {
		return cfg, nil
	}
	if target, ok := r.aliases[id]; ok {
		return r.configs[target], nil
	}
	return nil, modelNotFound(id)
}

// List returns all configs ordered by provider then id.
func (r *Registry) List() []*ModelConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*ModelConfig, 0, len(r.configs))
	for _, cfg := range r.configs {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Len returns the number of registered models.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.configs)
}
