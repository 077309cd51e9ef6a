package task

import (
	"context"
	"fmt"

	"github.com/henjicc/henji-server/internal/port/outbound"
)

// HistoryKey is the document key of the persisted task history.
const HistoryKey = "history"

// Repository persists the task history as a whole.
type Repository interface {
	// Load returns the saved history, oldest first. A missing history is empty.
	Load(ctx context.Context) ([]*Task, error)

	// Save replaces the saved history.
	Save(ctx context.Context, tasks []*Task) error
}

type historyDocument struct {
	Version int     `json:"version"`
	Tasks   []*Task `json:"tasks"`
}

type documentRepository struct {
	store outbound.DocumentStorePort
	key   string
}

// NewRepository creates a Repository over a document store.
func NewRepository(store outbound.DocumentStorePort) Repository {
	return &documentRepository{store: store, key: HistoryKey}
}

func (r *documentRepository) Load(ctx context.Context) ([]*Task, error) {
	var doc historyDocument
	found, err := r.store.ReadJSON(ctx, r.key, &doc)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	if !found {
		return nil, nil
	}
	tasks := doc.Tasks[:0]
	for _, t := range doc.Tasks {
		if t != nil {
			tasks = append(tasks, t)
		}
	}
	return tasks, nil
}

func (r *documentRepository) Save(ctx context.Context, tasks []*Task) error {
	if err := r.store.WriteJSON(ctx, r.key, historyDocument{Version: 1, Tasks: tasks}); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}

// Project returns the persistable view of tasks: queued and pending entries without a
// resume token are dropped, remote result URLs are stripped once a local copy exists, and
// only the newest maxHistory entries are kept. Input order is creation order.
func Project(tasks []*Task, maxHistory int) []*Task {
	out := make([]*Task, 0, len(tasks))
	for _, t := range tasks {
		if (t.Status == StatusQueued || t.Status == StatusPending) && !t.HasResumeToken() {
			continue
		}
		c := t.Clone()
		if c.Result != nil && c.Result.FilePath != "" {
			c.Result.URL = ""
		}
		out = append(out, c)
	}
	if maxHistory > 0 && len(out) > maxHistory {
		out = out[len(out)-maxHistory:]
	}
	return out
}

// Reclassify rewrites tasks that were in flight when the process stopped. Those with a
// resume token become timeout so the user can resume polling; the rest become error.
// It returns the number of rewritten tasks.
func Reclassify(tasks []*Task) int {
	n := 0
	for _, t := range tasks {
		if !t.IsActive() {
			continue
		}
		n++
		t.TimedOut = false
		if t.HasResumeToken() {
			t.Status = StatusTimeout
			t.Message = MessageInterruptedResumable
			continue
		}
		t.Status = StatusError
		t.Error = MessageInterrupted
		t.Message = MessageInterrupted
	}
	return n
}
