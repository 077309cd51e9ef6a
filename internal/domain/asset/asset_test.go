package asset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/henjicc/henji-server/internal/domain/generation"
	"github.com/henjicc/henji-server/internal/port/outbound"
)

// memStore is an in-memory AssetStoragePort.
type memStore struct {
	mu      sync.Mutex
	files   map[string][]byte
	seq     int
	deleted []string
	failDel bool
}

func newMemStore() *memStore {
	return &memStore{files: make(map[string][]byte)}
}

func (s *memStore) Save(_ context.Context, data []byte, ext string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	path := fmt.Sprintf("uploads/%d%s", s.seq, ext)
	s.files[path] = data
	return path, nil
}

func (s *memStore) Open(_ context.Context, path string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[path]
	if !ok {
		return nil, outbound.ErrAssetNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memStore) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failDel {
		return errors.New("permission denied")
	}
	delete(s.files, path)
	s.deleted = append(s.deleted, path)
	return nil
}

func (s *memStore) DisplayURL(_ context.Context, path string) (string, error) {
	return "/files/" + path, nil
}

func (s *memStore) List(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.files))
	for p := range s.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

func (s *memStore) put(path string) {
	s.mu.Lock()
	s.files[path] = []byte("x")
	s.mu.Unlock()
}

func (s *memStore) has(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[path]
	return ok
}

// owners is a mutable owner collection.
type owners struct {
	mu   sync.Mutex
	refs []Ref
}

func (o *owners) AssetRefs() []Ref {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Ref(nil), o.refs...)
}

func (o *owners) remove(id string) []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, r := range o.refs {
		if r.OwnerID == id {
			o.refs = append(o.refs[:i], o.refs[i+1:]...)
			return r.Paths
		}
	}
	return nil
}

func TestRefCount(t *testing.T) {
	tasks := []Ref{
		{OwnerID: "t1", Paths: []string{"a", "b"}},
		{OwnerID: "t2", Paths: []string{"a"}},
	}
	presets := []Ref{{OwnerID: "p1", Paths: []string{"b", "c"}}}

	assert.Equal(t, 2, RefCount("a", tasks, presets))
	assert.Equal(t, 2, RefCount("b", tasks, presets))
	assert.Equal(t, 1, RefCount("c", tasks, presets))
	assert.Equal(t, 0, RefCount("d", tasks, presets))

	assert.Equal(t, map[string]int{"a": 2, "b": 2, "c": 1}, AllRefCounts(tasks, presets))

	assert.False(t, CanDelete("a", tasks, presets, "t1"))
	assert.True(t, CanDelete("a", tasks[:1], presets, "t1"))
	assert.False(t, CanDelete("b", tasks, presets, "t1"))
	assert.True(t, CanDelete("d", tasks, presets, ""))
}

func TestCleanPath(t *testing.T) {
	for _, in := range []string{"ab/x.png", "./ab/x.png", "/ab/x.png", "ab//x.png", " ab/./x.png ", `ab\x.png`, "../ab/x.png"} {
		got, ok := CleanPath(in)
		assert.True(t, ok, in)
		assert.Equal(t, "ab/x.png", got, in)
	}
	for _, in := range []string{"", "/", ".", "..", "  "} {
		_, ok := CleanPath(in)
		assert.False(t, ok, in)
	}
}

func TestRefCount_AliasedPaths(t *testing.T) {
	tasks := []Ref{{OwnerID: "t1", Paths: []string{"ab/x.png"}}}
	presets := []Ref{{OwnerID: "p1", Paths: []string{"./ab/x.png"}}}

	assert.Equal(t, 2, RefCount("/ab/x.png", tasks, presets))
	assert.Equal(t, map[string]int{"ab/x.png": 2}, AllRefCounts(tasks, presets))
	assert.False(t, CanDelete("ab/x.png", nil, presets, ""))
}

func TestManager_AliasedReleaseKeepsSharedFile(t *testing.T) {
	store := newMemStore()
	store.put("uploads/x.png")

	tasks := &owners{refs: []Ref{{OwnerID: "t1", Paths: []string{"uploads/x.png"}}}}
	presets := &owners{refs: []Ref{{OwnerID: "p1", Paths: []string{"./uploads//x.png"}}}}

	m := NewManager(store, nil)
	m.BindTasks(tasks)
	m.BindPresets(presets)

	deleted, err := m.Release(context.Background(), func() ([]string, error) {
		return presets.remove("p1"), nil
	})
	require.NoError(t, err)
	assert.Empty(t, deleted)
	assert.True(t, store.has("uploads/x.png"))

	deleted, err = m.Release(context.Background(), func() ([]string, error) {
		return tasks.remove("t1"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"uploads/x.png"}, deleted)
}

func TestManager_AdoptStored(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.put("uploads/x.png")
	m := NewManager(store, nil)

	var got []string
	err := m.AdoptStored(ctx, []string{"/uploads/x.png", "./uploads/x.png"}, func(paths []string) error {
		got = paths
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"uploads/x.png"}, got)

	called := false
	err = m.AdoptStored(ctx, []string{"uploads/missing.png"}, func([]string) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, outbound.ErrAssetNotFound)

	err = m.AdoptStored(ctx, []string{"/"}, func([]string) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrInvalidPath)
	assert.False(t, called)
}

func TestManager_SharedAssetSurvivesUntilLastOwner(t *testing.T) {
	store := newMemStore()
	store.put("uploads/x.png")

	tasks := &owners{refs: []Ref{{OwnerID: "t1", Paths: []string{"uploads/x.png"}}}}
	presets := &owners{refs: []Ref{{OwnerID: "p1", Paths: []string{"uploads/x.png"}}}}

	m := NewManager(store, nil)
	m.BindTasks(tasks)
	m.BindPresets(presets)

	deleted, err := m.Release(context.Background(), func() ([]string, error) {
		return tasks.remove("t1"), nil
	})
	require.NoError(t, err)
	assert.Empty(t, deleted)
	assert.True(t, store.has("uploads/x.png"))

	deleted, err = m.Release(context.Background(), func() ([]string, error) {
		return presets.remove("p1"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"uploads/x.png"}, deleted)
	assert.False(t, store.has("uploads/x.png"))
}

func TestManager_ReleaseErrors(t *testing.T) {
	store := newMemStore()
	m := NewManager(store, nil)

	_, err := m.Release(context.Background(), func() ([]string, error) {
		return nil, errors.New("not found")
	})
	assert.Error(t, err)

	store.put("uploads/y.png")
	store.failDel = true
	deleted, err := m.Release(context.Background(), func() ([]string, error) {
		return []string{"uploads/y.png", "uploads/y.png"}, nil
	})
	require.NoError(t, err, "unlink failures are logged, not returned")
	assert.Equal(t, []string{"uploads/y.png"}, deleted)
}

func TestManager_PersistAttachesOrCleansUp(t *testing.T) {
	store := newMemStore()
	tasks := &owners{refs: []Ref{{OwnerID: "t1"}}}
	m := NewManager(store, nil)
	m.BindTasks(tasks)

	attach := func(id string) func(string) bool {
		return func(path string) bool {
			tasks.mu.Lock()
			defer tasks.mu.Unlock()
			for i := range tasks.refs {
				if tasks.refs[i].OwnerID == id {
					tasks.refs[i].Paths = append(tasks.refs[i].Paths, path)
					return true
				}
			}
			return false
		}
	}

	sink := m.Sink(attach("t1"))
	path, err := sink.Persist(context.Background(), generation.Asset{Data: []byte("img"), MIMEType: "image/png"})
	require.NoError(t, err)
	assert.Equal(t, "uploads/1.png", path)
	assert.True(t, store.has(path))
	assert.Equal(t, []string{path}, tasks.AssetRefs()[0].Paths)

	gone, err := m.Persist(context.Background(), []byte("img"), ".png", attach("deleted"))
	require.NoError(t, err)
	assert.False(t, store.has(gone), "file of a vanished owner is removed")
}

func TestManager_CollectOrphans(t *testing.T) {
	store := newMemStore()
	store.put("uploads/a.png")
	store.put("uploads/b.png")
	store.put("uploads/c.png")

	m := NewManager(store, nil)
	m.BindTasks(&owners{refs: []Ref{{OwnerID: "t1", Paths: []string{"uploads/a.png"}}}})
	m.BindPresets(&owners{refs: []Ref{{OwnerID: "p1", Paths: []string{"uploads/b.png"}}}})

	orphans, err := m.CollectOrphans(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"uploads/c.png"}, orphans)
	assert.True(t, store.has("uploads/a.png"))
	assert.True(t, store.has("uploads/b.png"))
	assert.False(t, store.has("uploads/c.png"))
}
