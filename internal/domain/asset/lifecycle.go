package asset

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/henjicc/henji-server/internal/domain/generation"
	"github.com/henjicc/henji-server/internal/port/outbound"
	"github.com/henjicc/henji-server/internal/utils/metrics"
)

// Owners exposes the current asset references of one collection.
type Owners interface {
	AssetRefs() []Ref
}

// OwnersFunc adapts a function to Owners.
type OwnersFunc func() []Ref

// AssetRefs implements Owners.
func (f OwnersFunc) AssetRefs() []Ref { return f() }

// Manager serializes owner removal, reference evaluation and unlinking.
type Manager struct {
	mu sync.Mutex

	store   outbound.AssetStoragePort
	tasks   Owners
	presets Owners
	logger  *zap.Logger
	metrics *metrics.Metrics

	unlinkConcurrency int
}

// NewManager creates a lifecycle manager. Owner collections are bound later with Bind
// because they usually depend on the manager themselves.
func NewManager(store outbound.AssetStoragePort, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:             store,
		tasks:             OwnersFunc(func() []Ref { return nil }),
		presets:           OwnersFunc(func() []Ref { return nil }),
		logger:            logger.Named("assets"),
		unlinkConcurrency: 4,
	}
}

// BindTasks sets the task collection.
func (m *Manager) BindTasks(o Owners) {
	m.mu.Lock()
	m.tasks = o
	m.mu.Unlock()
}

// BindPresets sets the preset collection.
func (m *Manager) BindPresets(o Owners) {
	m.mu.Lock()
	m.presets = o
	m.mu.Unlock()
}

// SetMetrics enables unlink accounting.
func (m *Manager) SetMetrics(mt *metrics.Metrics) {
	m.metrics = mt
}

// AdoptStored canonicalizes paths and checks under the lifecycle lock that each one is
// still stored, then passes the canonical paths to fn, which adds the new owner. An
// invalid or missing path fails before fn runs.
func (m *Manager) AdoptStored(ctx context.Context, paths []string, fn func(paths []string) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clean := make([]string, 0, len(paths))
	for _, p := range paths {
		c, ok := CleanPath(p)
		if !ok {
			return fmt.Errorf("%w: %q", ErrInvalidPath, p)
		}
		if slices.Contains(clean, c) {
			continue
		}
		rc, err := m.store.Open(ctx, c)
		if err != nil {
			return err
		}
		_ = rc.Close()
		clean = append(clean, c)
	}
	return fn(clean)
}

// Store returns the underlying asset storage.
func (m *Manager) Store() outbound.AssetStoragePort {
	return m.store
}

// Release runs remove, which must drop owners from their collections and return the
// paths they held, then unlinks every returned path that no remaining owner holds.
// Unlink failures are logged and never returned.
func (m *Manager) Release(ctx context.Context, remove func() ([]string, error)) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	candidates, err := remove()
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	tasks := m.tasks.AssetRefs()
	presets := m.presets.AssetRefs()

	var deletable []string
	seen := make(map[string]struct{}, len(candidates))
	for _, path := range candidates {
		path = canonical(path)
		if _, dup := seen[path]; dup || path == "" {
			continue
		}
		seen[path] = struct{}{}
		if RefCount(path, tasks, presets) == 0 {
			deletable = append(deletable, path)
		}
	}

	m.unlink(ctx, deletable)
	return deletable, nil
}

func (m *Manager) unlink(ctx context.Context, paths []string) {
	if len(paths) == 0 {
		return
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.unlinkConcurrency)
	for _, path := range paths {
		g.Go(func() error {
			if err := m.store.Delete(gctx, path); err != nil {
				m.logger.Warn("failed to delete asset",
					zap.String("path", path),
					zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
	m.metrics.RecordAssetsDeleted(len(paths))
	m.logger.Debug("released assets", zap.Int("count", len(paths)))
}

// Persist stores data and hands the path to attach under the lifecycle lock. When
// attach reports that the owner no longer exists, the file is removed again unless
// another owner already holds the same path.
func (m *Manager) Persist(ctx context.Context, data []byte, ext string, attach func(path string) bool) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path, err := m.store.Save(ctx, data, ext)
	if err != nil {
		return "", fmt.Errorf("save asset: %w", err)
	}
	if attach(path) {
		return path, nil
	}

	if RefCount(path, m.tasks.AssetRefs(), m.presets.AssetRefs()) == 0 {
		m.unlink(ctx, []string{path})
	}
	return path, nil
}

// Sink returns a generation.AssetSink that persists through m and attaches with attach.
func (m *Manager) Sink(attach func(path string) bool) generation.AssetSink {
	return &sink{m: m, attach: attach}
}

type sink struct {
	m      *Manager
	attach func(path string) bool
}

func (s *sink) Persist(ctx context.Context, a generation.Asset) (string, error) {
	return s.m.Persist(ctx, a.Data, a.Ext(), s.attach)
}

// CollectOrphans unlinks every stored path that no task or preset holds.
func (m *Manager) CollectOrphans(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, err := m.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	counts := AllRefCounts(m.tasks.AssetRefs(), m.presets.AssetRefs())

	var orphans []string
	for _, path := range stored {
		if counts[canonical(path)] == 0 {
			orphans = append(orphans, path)
		}
	}
	m.unlink(ctx, orphans)
	return orphans, nil
}
