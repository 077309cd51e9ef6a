package task

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"path"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/henjicc/henji-server/internal/domain/asset"
	"github.com/henjicc/henji-server/internal/domain/generation"
	"github.com/henjicc/henji-server/internal/infra/events"
	"github.com/henjicc/henji-server/internal/infra/poll"
	"github.com/henjicc/henji-server/internal/port/outbound"
	"github.com/henjicc/henji-server/internal/utils/metrics"
	"github.com/henjicc/henji-server/internal/utils/requestctx"
)

// Fetcher downloads a remote artifact.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (data []byte, mimeType string, err error)
}

// MediaInfo is what an Inspector learns from an artifact.
type MediaInfo struct {
	MIMEType string
	Ext      string
	Width    int
	Height   int
	Duration float64
}

// Inspector reads intrinsic dimensions and duration from artifact bytes.
type Inspector interface {
	Inspect(data []byte) (MediaInfo, error)
}

// Config contains scheduler configuration.
type Config struct {
	MaxHistory int         `json:"max_history" yaml:"max_history" mapstructure:"max_history"`
	Poll       poll.Config `json:"poll" yaml:"poll" mapstructure:"poll"`
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxHistory: 50,
		Poll:       poll.DefaultConfig(),
	}
}

// Deps are the collaborators of a Scheduler. Fetcher, Inspector, Bus and Metrics are
// optional.
type Deps struct {
	Builder   *generation.Builder
	Providers outbound.MediaProviderResolverPort
	Assets    *asset.Manager
	Repo      Repository
	Fetcher   Fetcher
	Inspector Inspector
	Bus       *events.Bus
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

// Scheduler runs generation tasks one at a time in FIFO order.
//
// Lock order is assets before scheduler: the scheduler never calls into the asset
// manager while holding mu.
type Scheduler struct {
	mu      sync.RWMutex
	tasks   []*Task
	byID    map[uuid.UUID]*Task
	queue   []uuid.UUID
	busy    bool
	stopped bool

	builder   *generation.Builder
	providers outbound.MediaProviderResolverPort
	assets    *asset.Manager
	repo      Repository
	fetcher   Fetcher
	inspector Inspector
	bus       *events.Bus
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	logger    *zap.Logger

	progress   *ProgressStore
	loop       *poll.Loop
	maxHistory atomic.Int64

	saveMu sync.Mutex

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler and registers it as the task owner collection of
// the asset manager.
func NewScheduler(deps Deps, config *Config) *Scheduler {
	if config == nil {
		config = DefaultConfig()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		byID:      make(map[uuid.UUID]*Task),
		builder:   deps.Builder,
		providers: deps.Providers,
		assets:    deps.Assets,
		repo:      deps.Repo,
		fetcher:   deps.Fetcher,
		inspector: deps.Inspector,
		bus:       deps.Bus,
		metrics:   deps.Metrics,
		tracer:    otel.Tracer("github.com/henjicc/henji-server/internal/infra/task"),
		logger:    logger.Named("scheduler"),
		progress:  NewProgressStore(),
		loop:      poll.New(config.Poll, logger),
		baseCtx:   ctx,
		cancel:    cancel,
	}
	s.SetMaxHistory(config.MaxHistory)
	deps.Assets.BindTasks(s)
	return s
}

// SetMaxHistory changes the history bound. Non-positive values fall back to 50.
// Lowering it evicts the oldest settled tasks right away.
func (s *Scheduler) SetMaxHistory(n int) {
	if n <= 0 {
		n = 50
	}
	if prev := s.maxHistory.Swap(int64(n)); prev > int64(n) {
		s.evictOverflow(context.Background())
	}
}

// evictOverflow removes the oldest settled tasks beyond the history bound. Their
// assets are released the same way a delete releases them. Tasks still queued or
// in flight are never evicted, so the list may exceed the bound while they run.
func (s *Scheduler) evictOverflow(ctx context.Context) {
	if s.baseCtx.Err() != nil {
		return
	}
	settled := func(t *Task) bool { return t.IsTerminal() || t.TimedOut }

	s.mu.RLock()
	excess := len(s.tasks) - int(s.maxHistory.Load())
	evict := make(map[uuid.UUID]struct{})
	for _, t := range s.tasks {
		if excess <= 0 {
			break
		}
		if settled(t) {
			evict[t.ID] = struct{}{}
			excess--
		}
	}
	s.mu.RUnlock()
	if len(evict) == 0 {
		return
	}

	n, err := s.remove(ctx, func(t *Task) bool {
		_, ok := evict[t.ID]
		return ok && settled(t)
	})
	if err != nil {
		s.logger.Warn("failed to evict history overflow", zap.Error(err))
		return
	}
	s.logger.Debug("history overflow evicted", zap.Int("count", n))
}

// Start restores the saved history. Tasks that were in flight are reclassified.
func (s *Scheduler) Start(ctx context.Context) error {
	loaded, err := s.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	interrupted := Reclassify(loaded)

	s.mu.Lock()
	for _, t := range loaded {
		if _, dup := s.byID[t.ID]; dup || t.ID == uuid.Nil {
			continue
		}
		s.tasks = append(s.tasks, t)
		s.byID[t.ID] = t
	}
	restored := len(s.tasks)
	s.mu.Unlock()

	s.logger.Info("scheduler started",
		zap.Int("restored", restored),
		zap.Int("interrupted", interrupted),
		zap.Int("max_history", int(s.maxHistory.Load())),
		zap.Duration("poll_interval", s.loop.Config().Interval),
		zap.Int("poll_max_attempts", s.loop.Config().MaxAttempts))

	if interrupted > 0 {
		s.persist(ctx)
	}
	s.evictOverflow(ctx)
	return nil
}

// Stop stops accepting work, aborts in-flight polls and saves the history.
// Tasks interrupted this way are reclassified on the next Start.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.persist(context.Background())
	s.logger.Info("scheduler stopped")
}

// Submit validates req and enqueues it. Validation, unknown models and missing
// credentials are reported here and never create a task.
func (s *Scheduler) Submit(ctx context.Context, req *SubmitRequest) (*Task, error) {
	cfg, err := s.builder.Validate(ctx, req.buildContext())
	if err != nil {
		return nil, err
	}
	if _, err := s.providers.Resolve(ctx, cfg.Provider); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCredentialMissing, cfg.Provider, err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate task id: %w", err)
	}
	now := time.Now()
	t := &Task{
		ID:             id,
		MediaType:      cfg.MediaType,
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		Model:          req.Model,
		Provider:       cfg.Provider,
		Params:         generation.Params(generation.Sanitize(generation.Options(req.Params))),
		CreatedAt:      now,
		UpdatedAt:      now,
		input:          req,
	}
	var stored []string
	for i := range req.Images {
		if req.Images[i].Path == "" {
			continue
		}
		p, ok := asset.CleanPath(req.Images[i].Path)
		if !ok {
			return nil, fmt.Errorf("%w: %q", asset.ErrInvalidPath, req.Images[i].Path)
		}
		req.Images[i].Path = p
		stored = append(stored, p)
	}

	var (
		start    bool
		snapshot *Task
		depth    int
	)
	err = s.assets.AdoptStored(ctx, stored, func(paths []string) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.stopped {
			return ErrStopped
		}
		t.UploadedFilePaths = paths
		if !s.busy {
			s.busy = true
			t.Status = StatusPending
			start = true
		} else {
			t.Status = StatusQueued
			s.queue = append(s.queue, t.ID)
		}
		s.tasks = append(s.tasks, t)
		s.byID[t.ID] = t
		snapshot = t.Clone()
		depth = len(s.queue)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("task submitted", append(requestctx.ZapFields(ctx),
		zap.String("task_id", t.ID.String()),
		zap.String("model", t.Model),
		zap.String("status", string(snapshot.Status)))...)
	s.metrics.RecordTaskSubmitted(t.Provider, t.Model)
	s.metrics.SetQueue(depth, true)
	s.publish(snapshot)
	s.persist(ctx)
	s.evictOverflow(ctx)

	if start {
		s.wg.Add(1)
		go s.run(t.ID)
	}
	return snapshot, nil
}

// run owns the slot: it executes id and then drains the queue in FIFO order.
func (s *Scheduler) run(id uuid.UUID) {
	defer s.wg.Done()
	for next := id; next != uuid.Nil; next = s.releaseSlot() {
		s.execute(next)
	}
}

// releaseSlot hands the slot to the oldest queued task, or frees it.
func (s *Scheduler) releaseSlot() uuid.UUID {
	s.mu.Lock()
	var (
		next     *Task
		snapshot *Task
	)
	for len(s.queue) > 0 && !s.stopped {
		id := s.queue[0]
		s.queue = s.queue[1:]
		if t, ok := s.byID[id]; ok && t.Status == StatusQueued {
			next = t
			break
		}
	}
	if next == nil {
		s.busy = false
	} else {
		next.Status = StatusPending
		next.UpdatedAt = time.Now()
		snapshot = next.Clone()
	}
	depth, busy := len(s.queue), s.busy
	s.mu.Unlock()

	s.metrics.SetQueue(depth, busy)
	if next == nil {
		return uuid.Nil
	}
	s.publish(snapshot)
	return next.ID
}

func (s *Scheduler) execute(id uuid.UUID) {
	ctx, span := s.tracer.Start(s.baseCtx, "task.execute",
		trace.WithAttributes(attribute.String("task.id", id.String())))
	defer span.End()

	started := time.Now()
	t, req, ok := s.beginGenerating(id)
	if !ok {
		return
	}
	span.SetAttributes(
		attribute.String("task.model", t.Model),
		attribute.String("task.provider", t.Provider))

	status, err := s.generate(ctx, t, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.fail(id, err)
		status = StatusError
	}
	s.metrics.RecordTaskFinished(t.Provider, t.Model, string(status), time.Since(started))
	s.evictOverflow(s.baseCtx)
}

func (s *Scheduler) beginGenerating(id uuid.UUID) (*Task, *SubmitRequest, bool) {
	s.mu.Lock()
	t, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return nil, nil, false
	}
	req := t.input
	t.input = nil
	t.Status = StatusGenerating
	t.UpdatedAt = time.Now()
	snapshot := t.Clone()
	s.mu.Unlock()

	if req == nil {
		s.fail(id, errors.New(MessageInterrupted))
		return nil, nil, false
	}
	s.publish(snapshot)
	s.persist(s.baseCtx)
	return snapshot, req, true
}

// generate builds and submits the task and waits for its result. It returns the
// status the task settled in.
func (s *Scheduler) generate(ctx context.Context, t *Task, req *SubmitRequest) (Status, error) {
	adapter, err := s.providers.Resolve(ctx, t.Provider)
	if err != nil {
		return StatusError, fmt.Errorf("%w: %s", ErrCredentialMissing, t.Provider)
	}

	bctx := req.buildContext()
	bctx.Assets = s.assets.Sink(func(path string) bool { return s.attachUpload(t.ID, path) })

	opts, cfg, err := s.builder.Build(ctx, bctx)
	if err != nil {
		return StatusError, err
	}
	s.update(t.ID, false, func(tk *Task) {
		tk.Options = generation.Sanitize(opts)
	})

	genReq := &outbound.GenerateRequest{
		TaskID:         t.ID.String(),
		Model:          cfg.ID,
		MediaType:      string(cfg.MediaType),
		Endpoint:       cfg.EndpointFor(opts, bctx),
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		Options:        opts,
	}
	res, err := adapter.Generate(ctx, genReq, s.progressFunc(t.ID))
	if err != nil {
		return StatusError, err
	}

	switch {
	case res.Output != nil:
		return StatusSuccess, s.complete(ctx, t.ID, res.Output)
	case res.Job != nil && res.Job.Valid():
		job := *res.Job
		s.update(t.ID, true, func(tk *Task) {
			tk.ServerTaskID = job.ServerTaskID
			tk.RequestID = job.RequestID
			tk.ModelID = job.ModelID
		})
		return s.await(ctx, t.ID, adapter, job)
	}
	return StatusError, errors.New("provider returned neither a result nor a job id")
}

// await runs one bounded poll cycle for job.
func (s *Scheduler) await(ctx context.Context, id uuid.UUID, adapter outbound.MediaProviderPort, job outbound.RemoteJob) (Status, error) {
	check := func(ctx context.Context) (poll.Status[outbound.GenerateOutput], error) {
		st, err := adapter.CheckStatus(ctx, job)
		if err != nil {
			return poll.Status[outbound.GenerateOutput]{}, err
		}
		return poll.Status[outbound.GenerateOutput]{
			State:    poll.State(st.State),
			Progress: st.Progress,
			Result:   st.Output,
			Reason:   st.Reason,
		}, nil
	}

	out, err := poll.Run(ctx, s.loop, check, s.progressFunc(id))
	s.metrics.RecordPollAttempts(adapter.Provider(), out.Attempts)
	if err != nil {
		return StatusError, err
	}
	if out.TimedOut {
		s.update(id, true, func(t *Task) {
			t.TimedOut = true
			t.Message = MessagePollTimedOut
		})
		s.logger.Info("poll window exhausted, task left resumable",
			zap.String("task_id", id.String()),
			zap.Int("attempts", out.Attempts))
		return StatusTimeout, nil
	}
	result := out.Result
	return StatusSuccess, s.complete(ctx, id, &result)
}

// complete caches the artifact locally, re-derives its dimensions and marks the task
// successful.
func (s *Scheduler) complete(ctx context.Context, id uuid.UUID, out *outbound.GenerateOutput) error {
	s.mu.RLock()
	t, ok := s.byID[id]
	var (
		mediaType string
		prompt    string
	)
	if ok {
		mediaType, prompt = string(t.MediaType), t.Prompt
	}
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	res := &Result{
		URL:       out.URL,
		MediaType: mediaType,
		Prompt:    prompt,
		Width:     out.Width,
		Height:    out.Height,
		Duration:  out.Duration,
		CreatedAt: time.Now(),
	}

	data, mimeType := out.Data, out.MIMEType
	if len(data) == 0 && out.URL != "" && s.fetcher != nil {
		var err error
		data, mimeType, err = s.fetcher.Fetch(ctx, out.URL)
		if err != nil {
			s.logger.Warn("failed to cache result locally",
				zap.String("task_id", id.String()),
				zap.String("url", out.URL),
				zap.Error(err))
			data = nil
		}
	}

	if len(data) > 0 {
		ext := extFor(mimeType, out.URL)
		if s.inspector != nil {
			if info, err := s.inspector.Inspect(data); err == nil {
				if info.Width > 0 && info.Height > 0 {
					res.Width, res.Height = info.Width, info.Height
				}
				if info.Duration > 0 {
					res.Duration = info.Duration
				}
				if info.Ext != "" {
					ext = info.Ext
				}
			} else {
				s.logger.Debug("inspect failed", zap.String("task_id", id.String()), zap.Error(err))
			}
		}
		_, err := s.assets.Persist(ctx, data, ext, func(path string) bool {
			return s.attachResult(id, path)
		})
		if err != nil {
			return fmt.Errorf("cache result: %w", err)
		}
	}

	s.progress.Set(id, 100)
	s.update(id, true, func(t *Task) {
		if t.Result != nil {
			res.FilePath = t.Result.FilePath
		}
		t.Result = res
		t.Status = StatusSuccess
		t.Progress = 100
		t.TimedOut = false
		t.Message = ""
		t.Error = ""
	})
	s.logger.Debug("task completed", zap.String("task_id", id.String()))
	return nil
}

func extFor(mimeType, rawURL string) string {
	if mimeType != "" {
		if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
			return exts[0]
		}
	}
	if u, err := url.Parse(rawURL); err == nil {
		if ext := path.Ext(u.Path); ext != "" {
			return ext
		}
	}
	return ".bin"
}

func (s *Scheduler) attachUpload(id uuid.UUID, p string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[id]
	if !ok {
		return false
	}
	if !slices.Contains(t.UploadedFilePaths, p) {
		t.UploadedFilePaths = append(t.UploadedFilePaths, p)
	}
	return true
}

func (s *Scheduler) attachResult(id uuid.UUID, p string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[id]
	if !ok {
		return false
	}
	if t.Result == nil {
		t.Result = &Result{}
	}
	t.Result.FilePath = p
	return true
}

// fail marks a task as failed unless the scheduler is shutting down, in which case
// the task is left for reclassification on the next start.
func (s *Scheduler) fail(id uuid.UUID, err error) {
	if s.baseCtx.Err() != nil {
		s.logger.Debug("task interrupted by shutdown", zap.String("task_id", id.String()))
		return
	}
	s.update(id, true, func(t *Task) {
		t.Status = StatusError
		t.Error = err.Error()
		t.TimedOut = false
	})
	s.logger.Warn("task failed",
		zap.String("task_id", id.String()),
		zap.Error(err))
}

// update mutates a task under the lock. Unknown ids are ignored.
func (s *Scheduler) update(id uuid.UUID, save bool, fn func(*Task)) {
	s.mu.Lock()
	t, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	fn(t)
	t.UpdatedAt = time.Now()
	snapshot := t.Clone()
	s.mu.Unlock()

	s.publish(snapshot)
	if save {
		s.persist(s.baseCtx)
	}
}

func (s *Scheduler) progressFunc(id uuid.UUID) func(int) {
	return func(p int) {
		s.mu.RLock()
		_, ok := s.byID[id]
		s.mu.RUnlock()
		if !ok {
			return
		}
		if s.progress.Set(id, p) && s.bus != nil {
			s.bus.Publish(events.NewTaskProgress(id, p))
		}
	}
}

// Resume starts another poll cycle for a timed out task. It does not take the
// execution slot, so queued work keeps flowing.
func (s *Scheduler) Resume(ctx context.Context, id uuid.UUID) (*Task, error) {
	s.mu.RLock()
	t, ok := s.byID[id]
	var provider string
	resumable := false
	if ok {
		provider, resumable = t.Provider, t.Resumable()
	}
	s.mu.RUnlock()
	if !ok {
		return nil, ErrTaskNotFound
	}
	if !resumable {
		return nil, ErrNotResumable
	}

	adapter, err := s.providers.Resolve(ctx, provider)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCredentialMissing, provider)
	}

	s.mu.Lock()
	t, ok = s.byID[id]
	if !ok || !t.Resumable() || s.stopped {
		s.mu.Unlock()
		return nil, ErrNotResumable
	}
	t.TimedOut = false
	t.Status = StatusGenerating
	t.Message = ""
	t.Error = ""
	t.UpdatedAt = time.Now()
	job := t.Job()
	snapshot := t.Clone()
	s.mu.Unlock()

	s.publish(snapshot)
	s.persist(ctx)
	s.logger.Info("resuming task", zap.String("task_id", id.String()))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, span := s.tracer.Start(s.baseCtx, "task.resume",
			trace.WithAttributes(attribute.String("task.id", id.String())))
		defer span.End()
		if _, err := s.await(ctx, id, adapter, job); err != nil {
			span.RecordError(err)
			s.fail(id, err)
		}
		s.evictOverflow(s.baseCtx)
	}()
	return snapshot, nil
}

// Get returns a task with its live progress.
func (s *Scheduler) Get(_ context.Context, id uuid.UUID) (*Task, error) {
	s.mu.RLock()
	t, ok := s.byID[id]
	var c *Task
	if ok {
		c = t.Clone()
	}
	s.mu.RUnlock()
	if !ok {
		return nil, ErrTaskNotFound
	}
	s.withProgress(c)
	return c, nil
}

// List returns tasks matching filter, newest first.
func (s *Scheduler) List(_ context.Context, filter *Filter) []*Task {
	s.mu.RLock()
	out := make([]*Task, 0, len(s.tasks))
	for i := len(s.tasks) - 1; i >= 0; i-- {
		if filter.match(s.tasks[i]) {
			out = append(out, s.tasks[i].Clone())
		}
		if filter != nil && filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	s.mu.RUnlock()

	for _, t := range out {
		s.withProgress(t)
	}
	return out
}

func (s *Scheduler) withProgress(t *Task) {
	if !t.IsActive() {
		return
	}
	if p, ok := s.progress.Get(t.ID); ok {
		t.Progress = p
	}
}

// Delete removes one task and releases its assets. In-flight work for the task keeps
// running and its callbacks are ignored.
func (s *Scheduler) Delete(ctx context.Context, id uuid.UUID) error {
	removed, err := s.remove(ctx, func(t *Task) bool { return t.ID == id })
	if err != nil {
		return err
	}
	if removed == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// DeleteWhere removes every task matching filter and returns how many were removed.
func (s *Scheduler) DeleteWhere(ctx context.Context, filter *Filter) (int, error) {
	return s.remove(ctx, filter.match)
}

func (s *Scheduler) remove(ctx context.Context, match func(*Task) bool) (int, error) {
	var removed []uuid.UUID
	_, err := s.assets.Release(ctx, func() ([]string, error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		var paths []string
		kept := s.tasks[:0]
		for _, t := range s.tasks {
			if !match(t) {
				kept = append(kept, t)
				continue
			}
			removed = append(removed, t.ID)
			delete(s.byID, t.ID)
			paths = append(paths, taskPaths(t)...)
		}
		clear(s.tasks[len(kept):])
		s.tasks = kept

		if len(removed) > 0 {
			s.queue = slices.DeleteFunc(s.queue, func(id uuid.UUID) bool {
				_, ok := s.byID[id]
				return !ok
			})
		}
		return paths, nil
	})
	if err != nil {
		return 0, err
	}
	if len(removed) == 0 {
		return 0, nil
	}

	for _, id := range removed {
		s.progress.Delete(id)
		if s.bus != nil {
			s.bus.Publish(events.NewTaskRemoved(id))
		}
	}
	s.mu.RLock()
	depth, busy := len(s.queue), s.busy
	s.mu.RUnlock()
	s.metrics.SetQueue(depth, busy)

	s.logger.Debug("tasks removed", zap.Int("count", len(removed)))
	s.persist(ctx)
	return len(removed), nil
}

func taskPaths(t *Task) []string {
	paths := append([]string(nil), t.UploadedFilePaths...)
	if t.Result != nil && t.Result.FilePath != "" {
		paths = append(paths, t.Result.FilePath)
	}
	return paths
}

// AssetRefs implements asset.Owners.
func (s *Scheduler) AssetRefs() []asset.Ref {
	s.mu.RLock()
	defer s.mu.RUnlock()
	refs := make([]asset.Ref, 0, len(s.tasks))
	for _, t := range s.tasks {
		refs = append(refs, asset.Ref{OwnerID: t.ID.String(), Paths: taskPaths(t)})
	}
	return refs
}

// QueueDepth returns the number of queued tasks and whether the slot is held.
func (s *Scheduler) QueueDepth() (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.queue), s.busy
}

func (s *Scheduler) publish(t *Task) {
	if s.bus == nil {
		return
	}
	s.withProgress(t)
	s.bus.Publish(events.NewTaskUpdated(t.ID, string(t.Status), t))
}

// persist saves the projected history. Errors are logged.
func (s *Scheduler) persist(ctx context.Context) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.RLock()
	projected := Project(s.tasks, int(s.maxHistory.Load()))
	s.mu.RUnlock()

	if ctx.Err() != nil {
		ctx = context.Background()
	}
	if err := s.repo.Save(ctx, projected); err != nil {
		s.logger.Error("failed to save history", zap.Error(err))
	}
}
