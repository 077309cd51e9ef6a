package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/henjicc/henji-server/internal/port/outbound"
)

// DocumentStore keeps one JSON file per key on a billy filesystem.
type DocumentStore struct {
	fs billy.Filesystem
	mu sync.Mutex
}

// New creates a document store on fs.
func New(fs billy.Filesystem) *DocumentStore {
	return &DocumentStore{fs: fs}
}

// NewOS creates a document store rooted at dir on the local disk.
func NewOS(dir string) (*DocumentStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return New(osfs.New(dir)), nil
}

func fileName(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("invalid document key %q", key)
	}
	return key + ".json", nil
}

func (s *DocumentStore) ReadJSON(_ context.Context, key string, dst any) (bool, error) {
	name, err := fileName(key)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.fs.Open(name)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", name, err)
	}
	if len(raw) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", name, err)
	}
	return true, nil
}

// WriteJSON writes to a temp file first and renames it over the document so a crash
// never leaves a truncated file behind.
func (s *DocumentStore) WriteJSON(_ context.Context, key string, v any) error {
	name, err := fileName(key)
	if err != nil {
		return err
	}
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := s.fs.TempFile("", "."+key+"-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		_ = s.fs.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := s.fs.Rename(tmp.Name(), name); err != nil {
		_ = s.fs.Remove(tmp.Name())
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

func (s *DocumentStore) Delete(_ context.Context, key string) error {
	name, err := fileName(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

var _ outbound.DocumentStorePort = (*DocumentStore)(nil)
