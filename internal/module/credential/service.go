// Package credential keeps provider API keys encrypted in the document store, with
// configured keys as fallback.
package credential

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/henjicc/henji-server/internal/port/outbound"
)

// DocumentKey is the document store key holding the encrypted keys.
const DocumentKey = "credentials"

// Source tells where a provider's key comes from.
type Source string

const (
	SourceNone   Source = "none"
	SourceStored Source = "stored"
	SourceConfig Source = "config"
)

// Status describes one provider's credential without revealing it.
type Status struct {
	Provider  string     `json:"provider"`
	Source    Source     `json:"source"`
	Hint      string     `json:"hint,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

type entry struct {
	Key       string    `json:"key"`
	UpdatedAt time.Time `json:"updated_at"`
}

type credentialDocument struct {
	Version int              `json:"version"`
	Entries map[string]entry `json:"entries"`
}

// Config configures the credential service.
type Config struct {
	// MasterKey encrypts stored keys. Without it only configured keys are served.
	MasterKey string `json:"-" yaml:"master_key" mapstructure:"master_key"`
	// Providers lists the accepted provider ids. Empty accepts any id.
	Providers []string `json:"providers" yaml:"providers" mapstructure:"providers"`
	// Fallback maps provider ids to keys from configuration or environment.
	Fallback map[string]string `json:"-" yaml:"-" mapstructure:"-"`
}

// Service manages provider API keys.
type Service struct {
	docs     outbound.DocumentStorePort
	sealer   *sealer
	allowed  []string
	fallback map[string]string
	logger   *zap.Logger

	mu      sync.RWMutex
	loaded  bool
	entries map[string]entry
}

// NewService creates a credential service.
func NewService(docs outbound.DocumentStorePort, cfg Config, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		docs:     docs,
		allowed:  slices.Clone(cfg.Providers),
		fallback: make(map[string]string, len(cfg.Fallback)),
		logger:   logger.Named("credentials"),
		entries:  make(map[string]entry),
	}
	for p, k := range cfg.Fallback {
		if k = strings.TrimSpace(k); k != "" {
			s.fallback[p] = k
		}
	}
	if cfg.MasterKey != "" {
		sl, err := newSealer(cfg.MasterKey)
		if err != nil {
			return nil, err
		}
		s.sealer = sl
	}
	return s, nil
}

// Load reads the stored keys. It is called lazily by the other methods.
func (s *Service) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

func (s *Service) loadLocked(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	var doc credentialDocument
	found, err := s.docs.ReadJSON(ctx, DocumentKey, &doc)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	if found && doc.Entries != nil {
		s.entries = doc.Entries
	}
	s.loaded = true
	return nil
}

func (s *Service) ensureLoaded(ctx context.Context) error {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded {
		return nil
	}
	return s.Load(ctx)
}

func (s *Service) check(provider string) error {
	if provider == "" || (len(s.allowed) > 0 && !slices.Contains(s.allowed, provider)) {
		return fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
	return nil
}

// APIKey returns the key for provider: the stored key first, then the configured one.
// An empty result means the provider has no credential.
func (s *Service) APIKey(ctx context.Context, provider string) (string, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return "", err
	}
	key, _, _ := s.resolve(provider)
	return key, nil
}

func (s *Service) resolve(provider string) (string, Source, time.Time) {
	s.mu.RLock()
	e, ok := s.entries[provider]
	s.mu.RUnlock()

	if ok && s.sealer != nil {
		key, err := s.sealer.open(provider, e.Key)
		if err == nil {
			return key, SourceStored, e.UpdatedAt
		}
		s.logger.Warn("stored credential unreadable, using fallback",
			zap.String("provider", provider), zap.Error(err))
	}
	if key := s.fallback[provider]; key != "" {
		return key, SourceConfig, time.Time{}
	}
	return "", SourceNone, time.Time{}
}

// Set encrypts and stores the key for provider.
func (s *Service) Set(ctx context.Context, provider, apiKey string) error {
	if err := s.check(provider); err != nil {
		return err
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return ErrEmptyKey
	}
	if s.sealer == nil {
		return ErrNoMasterKey
	}
	sealed, err := s.sealer.seal(provider, apiKey)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(ctx); err != nil {
		return err
	}
	prev, had := s.entries[provider]
	s.entries[provider] = entry{Key: sealed, UpdatedAt: time.Now().UTC()}
	if err := s.saveLocked(ctx); err != nil {
		if had {
			s.entries[provider] = prev
		} else {
			delete(s.entries, provider)
		}
		return err
	}
	s.logger.Info("credential stored", zap.String("provider", provider))
	return nil
}

// Clear removes the stored key for provider. A configured key stays in effect.
func (s *Service) Clear(ctx context.Context, provider string) error {
	if err := s.check(provider); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(ctx); err != nil {
		return err
	}
	prev, had := s.entries[provider]
	if !had {
		return nil
	}
	delete(s.entries, provider)
	if err := s.saveLocked(ctx); err != nil {
		s.entries[provider] = prev
		return err
	}
	s.logger.Info("credential cleared", zap.String("provider", provider))
	return nil
}

// List reports the credential source of every known provider.
func (s *Service) List(ctx context.Context) ([]Status, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	providers := slices.Clone(s.allowed)
	s.mu.RLock()
	for p := range s.entries {
		if !slices.Contains(providers, p) {
			providers = append(providers, p)
		}
	}
	s.mu.RUnlock()
	for p := range s.fallback {
		if !slices.Contains(providers, p) {
			providers = append(providers, p)
		}
	}
	slices.Sort(providers)

	out := make([]Status, 0, len(providers))
	for _, p := range providers {
		key, src, updated := s.resolve(p)
		st := Status{Provider: p, Source: src}
		if key != "" {
			st.Hint = hint(key)
		}
		if src == SourceStored {
			st.UpdatedAt = &updated
		}
		out = append(out, st)
	}
	return out, nil
}

func (s *Service) saveLocked(ctx context.Context) error {
	doc := credentialDocument{Version: 1, Entries: s.entries}
	if err := s.docs.WriteJSON(ctx, DocumentKey, doc); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	return nil
}

// hint masks a key down to its last four characters.
func hint(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}
