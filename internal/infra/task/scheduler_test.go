package task

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/henjicc/henji-server/internal/domain/asset"
	"github.com/henjicc/henji-server/internal/domain/generation"
	"github.com/henjicc/henji-server/internal/infra/events"
	"github.com/henjicc/henji-server/internal/infra/poll"
	"github.com/henjicc/henji-server/internal/port/outbound"
)

// --- Test doubles ---

type memDocs struct {
	mu   sync.Mutex
	docs map[string][]byte
}

func newMemDocs() *memDocs {
	return &memDocs{docs: make(map[string][]byte)}
}

func (d *memDocs) ReadJSON(_ context.Context, key string, dst any) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	raw, ok := d.docs[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (d *memDocs) WriteJSON(_ context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.docs[key] = raw
	d.mu.Unlock()
	return nil
}

func (d *memDocs) Delete(_ context.Context, key string) error {
	d.mu.Lock()
	delete(d.docs, key)
	d.mu.Unlock()
	return nil
}

type memAssets struct {
	mu    sync.Mutex
	files map[string][]byte
	seq   int
}

func newMemAssets() *memAssets {
	return &memAssets{files: make(map[string][]byte)}
}

func (s *memAssets) Save(_ context.Context, data []byte, ext string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	p := fmt.Sprintf("assets/%d%s", s.seq, ext)
	s.files[p] = data
	return p, nil
}

func (s *memAssets) Open(_ context.Context, p string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[p]
	if !ok {
		return nil, outbound.ErrAssetNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memAssets) Delete(_ context.Context, p string) error {
	s.mu.Lock()
	delete(s.files, p)
	s.mu.Unlock()
	return nil
}

func (s *memAssets) DisplayURL(_ context.Context, p string) (string, error) {
	return "/files/" + p, nil
}

func (s *memAssets) List(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.files))
	for p := range s.files {
		out = append(out, p)
	}
	return out, nil
}

func (s *memAssets) has(p string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[p]
	return ok
}

// fakeProvider answers Generate by prompt. A prompt with a gate blocks until the gate
// is closed.
type fakeProvider struct {
	mu        sync.Mutex
	gates     map[string]chan struct{}
	async     bool
	states    []outbound.JobState
	checks    atomic.Int32
	failWith  error
	requests  []*outbound.GenerateRequest
	generated chan string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		gates:     make(map[string]chan struct{}),
		generated: make(chan string, 16),
	}
}

func (p *fakeProvider) Provider() string { return "fake" }

func (p *fakeProvider) gate(prompt string) chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := make(chan struct{})
	p.gates[prompt] = ch
	return ch
}

func (p *fakeProvider) Generate(ctx context.Context, req *outbound.GenerateRequest, onProgress func(int)) (*outbound.GenerateResult, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	gate := p.gates[req.Prompt]
	failWith, async := p.failWith, p.async
	p.mu.Unlock()

	p.generated <- req.Prompt
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	onProgress(50)
	if failWith != nil {
		return nil, failWith
	}
	if async {
		return &outbound.GenerateResult{Job: &outbound.RemoteJob{ServerTaskID: "remote-" + req.Prompt}}, nil
	}
	return &outbound.GenerateResult{Output: &outbound.GenerateOutput{
		Data:     []byte("png-bytes"),
		MIMEType: "image/png",
		Width:    1024,
		Height:   1024,
	}}, nil
}

func (p *fakeProvider) setStates(states ...outbound.JobState) {
	p.mu.Lock()
	p.states = states
	p.mu.Unlock()
	p.checks.Store(0)
}

func (p *fakeProvider) CheckStatus(_ context.Context, job outbound.RemoteJob) (*outbound.JobStatus, error) {
	n := int(p.checks.Add(1)) - 1
	p.mu.Lock()
	defer p.mu.Unlock()
	state := outbound.JobProcessing
	if len(p.states) > 0 {
		state = p.states[min(n, len(p.states)-1)]
	}
	st := &outbound.JobStatus{State: state}
	if state == outbound.JobSucceeded {
		st.Output = &outbound.GenerateOutput{Data: []byte("mp4-bytes"), MIMEType: "video/mp4"}
	}
	if state == outbound.JobFailed {
		st.Reason = "content rejected"
	}
	return st, nil
}

type fakeResolver struct {
	provider *fakeProvider
	missing  atomic.Bool
}

func (r *fakeResolver) Resolve(_ context.Context, provider string) (outbound.MediaProviderPort, error) {
	if r.missing.Load() || provider != "fake" {
		return nil, outbound.ErrProviderNotConfigured
	}
	return r.provider, nil
}

type harness struct {
	sched    *Scheduler
	provider *fakeProvider
	resolver *fakeResolver
	docs     *memDocs
	assets   *memAssets
	manager  *asset.Manager
	bus      *events.Bus
}

func testRegistry() *generation.Registry {
	reg := generation.NewRegistry()
	reg.MustRegister(
		&generation.ModelConfig{
			ID:        "fake-image",
			MediaType: generation.MediaImage,
			Provider:  "fake",
			Endpoint:  "/image",
			ParamMapping: map[string]generation.ParamRule{
				"aspect_ratio": generation.Key("aspectRatio").WithDefault("1:1"),
			},
			Features: generation.Features{
				ImageUpload: &generation.ImageUploadConfig{Mode: generation.UploadMultiple},
			},
			Hooks: generation.Hooks{
				AfterBuild: func(ctx context.Context, _ generation.Options, bctx *generation.BuildContext) error {
					_, err := bctx.PersistImages(ctx)
					return err
				},
			},
		},
		&generation.ModelConfig{
			ID:        "fake-video",
			MediaType: generation.MediaVideo,
			Provider:  "fake",
			Endpoint:  "/video",
			Hooks: generation.Hooks{
				ValidateParams: func(bctx *generation.BuildContext) error {
					if d, ok := bctx.Params.Int("duration"); ok && d > 10 {
						return generation.NewValidationError("fake-video", "duration %d exceeds 10", d)
					}
					return nil
				},
			},
		},
	)
	return reg
}

func newHarness(t *testing.T, docs *memDocs, assets *memAssets) *harness {
	t.Helper()
	if docs == nil {
		docs = newMemDocs()
	}
	if assets == nil {
		assets = newMemAssets()
	}
	provider := newFakeProvider()
	resolver := &fakeResolver{provider: provider}
	manager := asset.NewManager(assets, nil)
	bus := events.NewBus(nil)

	sched := NewScheduler(Deps{
		Builder:   generation.NewBuilder(testRegistry()),
		Providers: resolver,
		Assets:    manager,
		Repo:      NewRepository(docs),
		Bus:       bus,
	}, &Config{
		MaxHistory: 50,
		Poll:       poll.Config{Interval: time.Millisecond, MaxAttempts: 5, CheckTimeout: time.Second},
	})
	require.NoError(t, sched.Start(context.Background()))
	t.Cleanup(sched.Stop)

	return &harness{
		sched:    sched,
		provider: provider,
		resolver: resolver,
		docs:     docs,
		assets:   assets,
		manager:  manager,
		bus:      bus,
	}
}

func (h *harness) status(t *testing.T, id uuid.UUID) Status {
	t.Helper()
	tk, err := h.sched.Get(context.Background(), id)
	require.NoError(t, err)
	return tk.Status
}

func (h *harness) waitStatus(t *testing.T, id uuid.UUID, want Status) {
	t.Helper()
	require.Eventually(t, func() bool {
		tk, err := h.sched.Get(context.Background(), id)
		return err == nil && tk.Status == want
	}, 2*time.Second, 2*time.Millisecond, "task %s never reached %s", id, want)
}

// --- Tests ---

func TestScheduler_Submit_DirectResult(t *testing.T) {
	h := newHarness(t, nil, nil)

	tk, err := h.sched.Submit(context.Background(), &SubmitRequest{Model: "fake-image", Prompt: "a cat"})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, tk.Status)
	assert.Equal(t, "fake", tk.Provider)
	assert.Equal(t, generation.MediaImage, tk.MediaType)

	h.waitStatus(t, tk.ID, StatusSuccess)

	got, err := h.sched.Get(context.Background(), tk.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, got.Progress)
	require.NotNil(t, got.Result)
	assert.NotEmpty(t, got.Result.FilePath)
	assert.True(t, h.assets.has(got.Result.FilePath))
	assert.Equal(t, "1:1", got.Options["aspect_ratio"])
}

func TestScheduler_Submit_RejectsBeforeSideEffects(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	_, err := h.sched.Submit(ctx, &SubmitRequest{Model: "nope", Prompt: "x"})
	assert.ErrorIs(t, err, generation.ErrModelNotFound)

	_, err = h.sched.Submit(ctx, &SubmitRequest{
		Model:  "fake-video",
		Prompt: "x",
		Params: generation.Params{"duration": 30},
	})
	assert.ErrorIs(t, err, generation.ErrValidation)

	h.resolver.missing.Store(true)
	_, err = h.sched.Submit(ctx, &SubmitRequest{Model: "fake-image", Prompt: "x"})
	assert.ErrorIs(t, err, ErrCredentialMissing)

	assert.Empty(t, h.sched.List(ctx, nil))
	depth, busy := h.sched.QueueDepth()
	assert.Zero(t, depth)
	assert.False(t, busy)
}

func TestScheduler_FIFO(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()
	gateA := h.provider.gate("A")

	a, err := h.sched.Submit(ctx, &SubmitRequest{Model: "fake-image", Prompt: "A"})
	require.NoError(t, err)
	b, err := h.sched.Submit(ctx, &SubmitRequest{Model: "fake-image", Prompt: "B"})
	require.NoError(t, err)
	c, err := h.sched.Submit(ctx, &SubmitRequest{Model: "fake-image", Prompt: "C"})
	require.NoError(t, err)

	assert.Equal(t, StatusPending, a.Status)
	assert.Equal(t, StatusQueued, b.Status)
	assert.Equal(t, StatusQueued, c.Status)

	assert.Equal(t, "A", <-h.provider.generated)
	h.waitStatus(t, a.ID, StatusGenerating)
	assert.Equal(t, StatusQueued, h.status(t, b.ID))

	close(gateA)
	assert.Equal(t, "B", <-h.provider.generated)
	assert.Equal(t, "C", <-h.provider.generated)
	h.waitStatus(t, c.ID, StatusSuccess)
	assert.Equal(t, StatusSuccess, h.status(t, a.ID))
	assert.Equal(t, StatusSuccess, h.status(t, b.ID))

	require.Eventually(t, func() bool {
		_, busy := h.sched.QueueDepth()
		return !busy
	}, time.Second, time.Millisecond)
}

func TestScheduler_ProviderErrorAdvancesQueue(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()
	h.provider.failWith = errors.New("upstream 502")

	a, err := h.sched.Submit(ctx, &SubmitRequest{Model: "fake-image", Prompt: "A"})
	require.NoError(t, err)
	b, err := h.sched.Submit(ctx, &SubmitRequest{Model: "fake-image", Prompt: "B"})
	require.NoError(t, err)

	h.waitStatus(t, b.ID, StatusError)
	got, err := h.sched.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusError, got.Status)
	assert.Equal(t, "upstream 502", got.Error)
}

func TestScheduler_PollTimeoutIsResumable(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()
	h.provider.async = true
	h.provider.setStates(outbound.JobProcessing)

	tk, err := h.sched.Submit(ctx, &SubmitRequest{Model: "fake-video", Prompt: "wave"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := h.sched.Get(ctx, tk.ID)
		return err == nil && got.TimedOut
	}, 2*time.Second, 2*time.Millisecond)

	got, err := h.sched.Get(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusGenerating, got.Status)
	assert.Equal(t, "remote-wave", got.ServerTaskID)
	assert.Empty(t, got.Error)
	assert.Equal(t, int32(5), h.provider.checks.Load())

	// The slot is free again after the poll window.
	require.Eventually(t, func() bool {
		_, busy := h.sched.QueueDepth()
		return !busy
	}, time.Second, time.Millisecond)

	h.provider.setStates(outbound.JobProcessing, outbound.JobSucceeded)
	resumed, err := h.sched.Resume(ctx, tk.ID)
	require.NoError(t, err)
	assert.False(t, resumed.TimedOut)

	h.waitStatus(t, tk.ID, StatusSuccess)
	got, err = h.sched.Get(ctx, tk.ID)
	require.NoError(t, err)
	assert.False(t, got.TimedOut)
	require.NotNil(t, got.Result)
	assert.True(t, h.assets.has(got.Result.FilePath))
}

func TestScheduler_PollFailure(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.provider.async = true
	h.provider.setStates(outbound.JobQueued, outbound.JobFailed)

	tk, err := h.sched.Submit(context.Background(), &SubmitRequest{Model: "fake-video", Prompt: "boom"})
	require.NoError(t, err)

	h.waitStatus(t, tk.ID, StatusError)
	got, err := h.sched.Get(context.Background(), tk.ID)
	require.NoError(t, err)
	assert.Contains(t, got.Error, poll.ErrJobFailed.Error())
}

func TestScheduler_Resume_Rejects(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	_, err := h.sched.Resume(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrTaskNotFound)

	tk, err := h.sched.Submit(ctx, &SubmitRequest{Model: "fake-image", Prompt: "done"})
	require.NoError(t, err)
	h.waitStatus(t, tk.ID, StatusSuccess)

	_, err = h.sched.Resume(ctx, tk.ID)
	assert.ErrorIs(t, err, ErrNotResumable)
}

func TestScheduler_DeleteIgnoresLateCallbacks(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()
	gate := h.provider.gate("slow")

	tk, err := h.sched.Submit(ctx, &SubmitRequest{
		Model:  "fake-image",
		Prompt: "slow",
		Images: []generation.Asset{{Data: []byte("src"), MIMEType: "image/png"}},
	})
	require.NoError(t, err)
	<-h.provider.generated

	var uploads []string
	require.Eventually(t, func() bool {
		got, err := h.sched.Get(ctx, tk.ID)
		if err != nil || len(got.UploadedFilePaths) == 0 {
			return false
		}
		uploads = got.UploadedFilePaths
		return true
	}, time.Second, time.Millisecond)
	require.True(t, h.assets.has(uploads[0]))

	require.NoError(t, h.sched.Delete(ctx, tk.ID))
	assert.False(t, h.assets.has(uploads[0]))
	assert.ErrorIs(t, h.sched.Delete(ctx, tk.ID), ErrTaskNotFound)

	close(gate)
	next, err := h.sched.Submit(ctx, &SubmitRequest{Model: "fake-image", Prompt: "next"})
	require.NoError(t, err)
	h.waitStatus(t, next.ID, StatusSuccess)

	_, err = h.sched.Get(ctx, tk.ID)
	assert.ErrorIs(t, err, ErrTaskNotFound)

	// The late result was not attached to anyone, so only next's result remains.
	got, err := h.sched.Get(ctx, next.ID)
	require.NoError(t, err)
	paths, err := h.assets.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{got.Result.FilePath}, paths)
}

func TestScheduler_SharedUploadSurvivesDelete(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	shared, err := h.assets.Save(ctx, []byte("src"), ".png")
	require.NoError(t, err)
	img := generation.Asset{Data: []byte("src"), MIMEType: "image/png", Path: shared}

	a, err := h.sched.Submit(ctx, &SubmitRequest{Model: "fake-image", Prompt: "A", Images: []generation.Asset{img}})
	require.NoError(t, err)
	b, err := h.sched.Submit(ctx, &SubmitRequest{Model: "fake-image", Prompt: "B", Images: []generation.Asset{img}})
	require.NoError(t, err)
	h.waitStatus(t, b.ID, StatusSuccess)

	require.NoError(t, h.sched.Delete(ctx, a.ID))
	assert.True(t, h.assets.has(shared))

	require.NoError(t, h.sched.Delete(ctx, b.ID))
	assert.False(t, h.assets.has(shared))
}

func TestScheduler_AliasedUploadPathIsOneReference(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	shared, err := h.assets.Save(ctx, []byte("src"), ".png")
	require.NoError(t, err)

	a, err := h.sched.Submit(ctx, &SubmitRequest{Model: "fake-image", Prompt: "A", Images: []generation.Asset{
		{Data: []byte("src"), MIMEType: "image/png", Path: "./" + shared},
	}})
	require.NoError(t, err)
	assert.Equal(t, []string{shared}, a.UploadedFilePaths)
	b, err := h.sched.Submit(ctx, &SubmitRequest{Model: "fake-image", Prompt: "B", Images: []generation.Asset{
		{Data: []byte("src"), MIMEType: "image/png", Path: shared},
	}})
	require.NoError(t, err)
	h.waitStatus(t, b.ID, StatusSuccess)

	require.NoError(t, h.sched.Delete(ctx, a.ID))
	assert.True(t, h.assets.has(shared))

	_, err = h.sched.Submit(ctx, &SubmitRequest{Model: "fake-image", Prompt: "C", Images: []generation.Asset{
		{Data: []byte("src"), MIMEType: "image/png", Path: "assets/missing.png"},
	}})
	assert.ErrorIs(t, err, outbound.ErrAssetNotFound)
}

func TestScheduler_DeleteWhere(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	ok, err := h.sched.Submit(ctx, &SubmitRequest{Model: "fake-image", Prompt: "ok"})
	require.NoError(t, err)
	h.waitStatus(t, ok.ID, StatusSuccess)

	h.provider.mu.Lock()
	h.provider.failWith = errors.New("nsfw")
	h.provider.mu.Unlock()
	bad, err := h.sched.Submit(ctx, &SubmitRequest{Model: "fake-image", Prompt: "bad"})
	require.NoError(t, err)
	h.waitStatus(t, bad.ID, StatusError)

	n, err := h.sched.DeleteWhere(ctx, &Filter{Statuses: []Status{StatusError}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	remaining := h.sched.List(ctx, nil)
	require.Len(t, remaining, 1)
	assert.Equal(t, ok.ID, remaining[0].ID)

	n, err = h.sched.DeleteWhere(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, h.sched.List(ctx, nil))
}

func TestScheduler_MaxHistoryEvictsOldestSettled(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()
	h.sched.SetMaxHistory(2)

	var done []*Task
	for _, p := range []string{"1", "2", "3", "4"} {
		tk, err := h.sched.Submit(ctx, &SubmitRequest{Model: "fake-image", Prompt: p})
		require.NoError(t, err)
		h.waitStatus(t, tk.ID, StatusSuccess)
		got, err := h.sched.Get(ctx, tk.ID)
		require.NoError(t, err)
		done = append(done, got)
	}

	require.Eventually(t, func() bool {
		return len(h.sched.List(ctx, nil)) == 2
	}, 2*time.Second, 2*time.Millisecond)
	list := h.sched.List(ctx, nil)
	assert.Equal(t, done[3].ID, list[0].ID)
	assert.Equal(t, done[2].ID, list[1].ID)

	_, err := h.sched.Get(ctx, done[0].ID)
	assert.ErrorIs(t, err, ErrTaskNotFound)
	assert.False(t, h.assets.has(done[0].Result.FilePath), "evicted result must be released")
	assert.False(t, h.assets.has(done[1].Result.FilePath))
	assert.True(t, h.assets.has(done[3].Result.FilePath))

	t.Run("lowering the bound evicts immediately", func(t *testing.T) {
		h.sched.SetMaxHistory(1)
		list := h.sched.List(ctx, nil)
		require.Len(t, list, 1)
		assert.Equal(t, done[3].ID, list[0].ID)
		assert.False(t, h.assets.has(done[2].Result.FilePath))
	})
}

func TestScheduler_MaxHistoryKeepsInFlightTasks(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()
	h.sched.SetMaxHistory(1)

	gate := h.provider.gate("slow")
	slow, err := h.sched.Submit(ctx, &SubmitRequest{Model: "fake-image", Prompt: "slow"})
	require.NoError(t, err)
	queued, err := h.sched.Submit(ctx, &SubmitRequest{Model: "fake-image", Prompt: "next"})
	require.NoError(t, err)

	assert.Len(t, h.sched.List(ctx, nil), 2)
	close(gate)
	h.waitStatus(t, queued.ID, StatusSuccess)

	require.Eventually(t, func() bool {
		list := h.sched.List(ctx, nil)
		return len(list) == 1 && list[0].ID == queued.ID
	}, 2*time.Second, 2*time.Millisecond)
	_, err = h.sched.Get(ctx, slow.ID)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestScheduler_ListNewestFirst(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	var ids []uuid.UUID
	for _, p := range []string{"1", "2", "3"} {
		tk, err := h.sched.Submit(ctx, &SubmitRequest{Model: "fake-image", Prompt: p})
		require.NoError(t, err)
		ids = append(ids, tk.ID)
	}
	h.waitStatus(t, ids[2], StatusSuccess)

	list := h.sched.List(ctx, &Filter{Limit: 2})
	require.Len(t, list, 2)
	assert.Equal(t, ids[2], list[0].ID)
	assert.Equal(t, ids[1], list[1].ID)

	assert.Empty(t, h.sched.List(ctx, &Filter{MediaType: generation.MediaVideo}))
}

func TestScheduler_ReloadReclassifies(t *testing.T) {
	docs := newMemDocs()
	now := time.Now()
	resumable := &Task{ID: uuid.New(), Model: "fake-video", Provider: "fake", Status: StatusGenerating, ServerTaskID: "srv-1", CreatedAt: now}
	lost := &Task{ID: uuid.New(), Model: "fake-image", Provider: "fake", Status: StatusGenerating, CreatedAt: now}
	done := &Task{ID: uuid.New(), Model: "fake-image", Provider: "fake", Status: StatusSuccess, Progress: 100, CreatedAt: now}
	require.NoError(t, NewRepository(docs).Save(context.Background(), []*Task{resumable, lost, done}))

	h := newHarness(t, docs, nil)
	ctx := context.Background()

	got, err := h.sched.Get(ctx, resumable.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusTimeout, got.Status)
	assert.Equal(t, MessageInterruptedResumable, got.Message)

	got, err = h.sched.Get(ctx, lost.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusError, got.Status)
	assert.Equal(t, MessageInterrupted, got.Error)

	assert.Equal(t, StatusSuccess, h.status(t, done.ID))

	saved, err := NewRepository(docs).Load(ctx)
	require.NoError(t, err)
	require.Len(t, saved, 3)
	assert.Equal(t, StatusTimeout, saved[0].Status)

	h.provider.setStates(outbound.JobSucceeded)
	_, err = h.sched.Resume(ctx, resumable.ID)
	require.NoError(t, err)
	h.waitStatus(t, resumable.ID, StatusSuccess)
}

func TestScheduler_PublishesEvents(t *testing.T) {
	h := newHarness(t, nil, nil)

	var (
		mu       sync.Mutex
		statuses []string
	)
	unregister := h.bus.Register(events.NewHandlerFunc([]string{events.TaskUpdatedType}, func(e events.Event) error {
		mu.Lock()
		statuses = append(statuses, e.(*events.TaskUpdated).Status)
		mu.Unlock()
		return nil
	}))
	defer unregister()

	tk, err := h.sched.Submit(context.Background(), &SubmitRequest{Model: "fake-image", Prompt: "evt"})
	require.NoError(t, err)
	h.waitStatus(t, tk.ID, StatusSuccess)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(statuses) > 0 && statuses[len(statuses)-1] == string(StatusSuccess)
	}, time.Second, time.Millisecond)
	mu.Lock()
	assert.Equal(t, string(StatusPending), statuses[0])
	assert.Contains(t, statuses, string(StatusGenerating))
	mu.Unlock()
}

func TestScheduler_SubmitAfterStop(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.sched.Stop()

	_, err := h.sched.Submit(context.Background(), &SubmitRequest{Model: "fake-image", Prompt: "late"})
	assert.ErrorIs(t, err, ErrStopped)
}
