package mediaprovider

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/henjicc/henji-server/internal/infra/httpclient"
	"github.com/henjicc/henji-server/internal/port/outbound"
	"github.com/henjicc/henji-server/internal/utils/metrics"
)

// Factory builds an adapter for one API key.
type Factory func(apiKey string) outbound.MediaProviderPort

// KeySource looks up the API key of a provider. An empty key means not configured.
type KeySource interface {
	APIKey(ctx context.Context, provider string) (string, error)
}

// Registry manages provider adapter factories and resolves them against the configured
// credentials. Each provider keeps one breaker for the life of the registry.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	breakers  map[string]*gobreaker.CircuitBreaker[any]

	keys       KeySource
	breakerCfg *BreakerConfig
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(keys KeySource, breakerCfg *BreakerConfig, m *metrics.Metrics, logger *zap.Logger) *Registry {
	if breakerCfg == nil {
		breakerCfg = DefaultBreakerConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		factories:  make(map[string]Factory),
		breakers:   make(map[string]*gobreaker.CircuitBreaker[any]),
		keys:       keys,
		breakerCfg: breakerCfg,
		metrics:    m,
		logger:     logger.Named("providers"),
	}
}

// ProvidersConfig holds the per-provider settings.
type ProvidersConfig struct {
	Fal        Config `json:"fal" yaml:"fal" mapstructure:"fal"`
	PPIO       Config `json:"ppio" yaml:"ppio" mapstructure:"ppio"`
	KIE        Config `json:"kie" yaml:"kie" mapstructure:"kie"`
	ModelScope Config `json:"modelscope" yaml:"modelscope" mapstructure:"modelscope"`
	// KIEUploadURL overrides the KIE file upload endpoint.
	KIEUploadURL string `json:"kie_upload_url" yaml:"kie_upload_url" mapstructure:"kie_upload_url"`
}

// NewDefaultRegistry registers the four built-in providers on client. A provider
// Timeout overrides the client timeout for that provider only.
func NewDefaultRegistry(client *http.Client, cfg *ProvidersConfig, keys KeySource, breakerCfg *BreakerConfig, m *metrics.Metrics, logger *zap.Logger) *Registry {
	r := NewRegistry(keys, breakerCfg, m, logger)
	r.Register("fal", func(key string) outbound.MediaProviderPort {
		c := cfg.Fal
		c.APIKey = key
		return NewFalAdapter(httpclient.WithTimeout(client, c.Timeout), c)
	})
	r.Register("ppio", func(key string) outbound.MediaProviderPort {
		c := cfg.PPIO
		c.APIKey = key
		return NewPPIOAdapter(httpclient.WithTimeout(client, c.Timeout), c)
	})
	r.Register("kie", func(key string) outbound.MediaProviderPort {
		c := cfg.KIE
		c.APIKey = key
		return NewKIEAdapter(httpclient.WithTimeout(client, c.Timeout), c, cfg.KIEUploadURL)
	})
	r.Register("modelscope", func(key string) outbound.MediaProviderPort {
		c := cfg.ModelScope
		c.APIKey = key
		return NewModelScopeAdapter(httpclient.WithTimeout(client, c.Timeout), c)
	})
	return r
}

// Register registers a factory.
func (r *Registry) Register(provider string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[provider] = f
}

// Resolve builds the adapter for provider with its current key.
func (r *Registry) Resolve(ctx context.Context, provider string) (outbound.MediaProviderPort, error) {
	r.mu.RLock()
	f, ok := r.factories[provider]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no adapter for %s", outbound.ErrProviderNotConfigured, provider)
	}

	key, err := r.keys.APIKey(ctx, provider)
	if err != nil {
		return nil, fmt.Errorf("load %s credential: %w", provider, err)
	}
	if key == "" {
		return nil, fmt.Errorf("%w: no API key for %s", outbound.ErrProviderNotConfigured, provider)
	}
	return NewBreakerAdapter(f(key), r.breaker(provider), r.metrics), nil
}

func (r *Registry) breaker(provider string) *gobreaker.CircuitBreaker[any] {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[provider]; ok {
		return b
	}
	b := newBreaker(provider, r.breakerCfg, r.metrics, r.logger)
	r.breakers[provider] = b
	return b
}

// Providers returns the registered provider ids in order.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]string, 0, len(r.factories))
	for p := range r.factories {
		result = append(result, p)
	}
	sort.Strings(result)
	return result
}

// Compile-time interface check
var _ outbound.MediaProviderResolverPort = (*Registry)(nil)
