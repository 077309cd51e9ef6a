package assetfs

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/zeebo/blake3"

	"github.com/henjicc/henji-server/internal/domain/asset"
	"github.com/henjicc/henji-server/internal/port/outbound"
)

// Store keeps assets on a billy filesystem under content-addressed paths of the form
// "ab/abcdef...ext". Saving the same bytes twice yields the same path.
type Store struct {
	fs         billy.Filesystem
	publicPath string
}

// New creates a store on fs. publicPath is the URL prefix the files are served under.
func New(fs billy.Filesystem, publicPath string) *Store {
	return &Store{fs: fs, publicPath: strings.TrimRight(publicPath, "/")}
}

// NewOS creates a store rooted at dir on the local disk.
func NewOS(dir, publicPath string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create asset dir: %w", err)
	}
	return New(osfs.New(dir), publicPath), nil
}

// Key derives the content address of data.
func Key(data []byte, ext string) string {
	sum := blake3.Sum256(data)
	digest := hex.EncodeToString(sum[:16])
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return path.Join(digest[:2], digest+strings.ToLower(ext))
}

func clean(p string) (string, error) {
	key, ok := asset.CleanPath(p)
	if !ok {
		return "", fmt.Errorf("%w: %q", asset.ErrInvalidPath, p)
	}
	return key, nil
}

func (s *Store) Save(_ context.Context, data []byte, ext string) (string, error) {
	key := Key(data, ext)
	if _, err := s.fs.Stat(key); err == nil {
		return key, nil
	}
	if err := util.WriteFile(s.fs, key, data, 0o644); err != nil {
		return "", fmt.Errorf("write asset: %w", err)
	}
	return key, nil
}

func (s *Store) Open(_ context.Context, p string) (io.ReadCloser, error) {
	key, err := clean(p)
	if err != nil {
		return nil, err
	}
	f, err := s.fs.Open(key)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", outbound.ErrAssetNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("open asset: %w", err)
	}
	return f, nil
}

func (s *Store) Delete(_ context.Context, p string) error {
	key, err := clean(p)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(key); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove asset: %w", err)
	}
	return nil
}

func (s *Store) DisplayURL(_ context.Context, p string) (string, error) {
	key, err := clean(p)
	if err != nil {
		return "", err
	}
	return s.publicPath + "/" + key, nil
}

func (s *Store) List(_ context.Context) ([]string, error) {
	var paths []string
	err := util.Walk(s.fs, "", func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || strings.HasPrefix(info.Name(), ".") {
			return nil
		}
		paths = append(paths, filepath.ToSlash(strings.TrimPrefix(p, "/")))
		return nil
	})
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	return paths, nil
}

var _ outbound.AssetStoragePort = (*Store)(nil)
