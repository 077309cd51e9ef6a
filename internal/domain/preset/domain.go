package preset

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/henjicc/henji-server/internal/domain/asset"
	"github.com/henjicc/henji-server/internal/port/outbound"
)

var _ asset.Owners = (*Domain)(nil)

// DocumentKey is the document key of the persisted preset list.
const DocumentKey = "presets"

type presetDocument struct {
	Version int       `json:"version"`
	Presets []*Preset `json:"presets"`
}

// Domain implements the preset domain logic.
type Domain struct {
	mu      sync.RWMutex
	presets []*Preset

	docs   outbound.DocumentStorePort
	assets *asset.Manager
	logger *zap.Logger
}

// NewDomain creates a preset domain and registers it as the preset owner collection
// of the asset manager.
func NewDomain(docs outbound.DocumentStorePort, assets *asset.Manager, logger *zap.Logger) *Domain {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Domain{
		docs:   docs,
		assets: assets,
		logger: logger.Named("presets"),
	}
	assets.BindPresets(d)
	return d
}

// Load restores the saved presets.
func (d *Domain) Load(ctx context.Context) error {
	var doc presetDocument
	found, err := d.docs.ReadJSON(ctx, DocumentKey, &doc)
	if err != nil {
		return fmt.Errorf("read presets: %w", err)
	}
	if !found {
		return nil
	}

	d.mu.Lock()
	d.presets = d.presets[:0]
	for _, p := range doc.Presets {
		if p != nil && p.ID != uuid.Nil {
			d.presets = append(d.presets, p)
		}
	}
	n := len(d.presets)
	d.mu.Unlock()

	d.logger.Info("presets loaded", zap.Int("count", n))
	return nil
}

// Create validates in, persists its new images and saves the preset.
func (d *Domain) Create(ctx context.Context, in *CreateInput) (*Preset, error) {
	if in == nil || strings.TrimSpace(in.Name) == "" {
		return nil, ErrInvalidName
	}
	mode := in.SaveMode
	if mode == "" {
		mode = SaveModePrompt
	}
	if !mode.IsValid() {
		return nil, ErrInvalidSaveMode
	}
	if mode == SaveModeFull && (in.Model == nil || in.Model.ModelID == "") {
		return nil, ErrMissingModel
	}

	now := time.Now()
	p := &Preset{
		ID:        uuid.New(),
		Name:      strings.TrimSpace(in.Name),
		Prompt:    in.Prompt,
		SaveMode:  mode,
		CreatedAt: now,
		UpdatedAt: now,
	}
	keepImages := mode != SaveModePrompt && len(in.Images) > 0
	if keepImages {
		p.Images = &Images{}
	}
	if mode == SaveModeFull {
		m := *in.Model
		p.Model = &m
		p.Params = in.Params.Clone()
	}

	var stored []string
	if keepImages {
		for _, img := range in.Images {
			if img.Path != "" {
				stored = append(stored, img.Path)
			}
		}
	}
	err := d.assets.AdoptStored(ctx, stored, func(paths []string) error {
		d.mu.Lock()
		defer d.mu.Unlock()
		if keepImages {
			p.Images.FilePaths = append(p.Images.FilePaths, paths...)
		}
		d.presets = append(d.presets, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("adopt preset images: %w", err)
	}

	if keepImages {
		for _, img := range in.Images {
			if img.Path != "" {
				continue
			}
			_, err := d.assets.Persist(ctx, img.Data, img.Ext(), func(path string) bool {
				return d.attach(p.ID, path)
			})
			if err != nil {
				if derr := d.Delete(ctx, p.ID); derr != nil {
					d.logger.Warn("failed to roll back preset", zap.Error(derr))
				}
				return nil, fmt.Errorf("persist preset image: %w", err)
			}
		}
	}

	if err := d.save(ctx); err != nil {
		return nil, err
	}
	d.logger.Debug("preset created", zap.String("id", p.ID.String()), zap.String("mode", string(mode)))
	return d.Get(ctx, p.ID)
}

func (d *Domain) attach(id uuid.UUID, path string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range d.presets {
		if p.ID == id {
			if p.Images == nil {
				p.Images = &Images{}
			}
			if !slices.Contains(p.Images.FilePaths, path) {
				p.Images.FilePaths = append(p.Images.FilePaths, path)
			}
			return true
		}
	}
	return false
}

// Get returns one preset.
func (d *Domain) Get(_ context.Context, id uuid.UUID) (*Preset, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, p := range d.presets {
		if p.ID == id {
			return p.Clone(), nil
		}
	}
	return nil, ErrPresetNotFound
}

// List returns all presets, newest first.
func (d *Domain) List(_ context.Context) []*Preset {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*Preset, 0, len(d.presets))
	for i := len(d.presets) - 1; i >= 0; i-- {
		out = append(out, d.presets[i].Clone())
	}
	return out
}

// Delete removes a preset and unlinks the images no task or other preset holds.
func (d *Domain) Delete(ctx context.Context, id uuid.UUID) error {
	found := false
	_, err := d.assets.Release(ctx, func() ([]string, error) {
		d.mu.Lock()
		defer d.mu.Unlock()
		for i, p := range d.presets {
			if p.ID == id {
				found = true
				d.presets = slices.Delete(d.presets, i, i+1)
				return p.FilePaths(), nil
			}
		}
		return nil, nil
	})
	if err != nil {
		return err
	}
	if !found {
		return ErrPresetNotFound
	}
	return d.save(ctx)
}

// AssetRefs implements asset.Owners.
func (d *Domain) AssetRefs() []asset.Ref {
	d.mu.RLock()
	defer d.mu.RUnlock()
	refs := make([]asset.Ref, 0, len(d.presets))
	for _, p := range d.presets {
		refs = append(refs, asset.Ref{OwnerID: p.ID.String(), Paths: p.FilePaths()})
	}
	return refs
}

func (d *Domain) save(ctx context.Context) error {
	d.mu.RLock()
	doc := presetDocument{Version: 1, Presets: make([]*Preset, 0, len(d.presets))}
	for _, p := range d.presets {
		doc.Presets = append(doc.Presets, p.Clone())
	}
	d.mu.RUnlock()

	if err := d.docs.WriteJSON(ctx, DocumentKey, doc); err != nil {
		return fmt.Errorf("write presets: %w", err)
	}
	return nil
}
