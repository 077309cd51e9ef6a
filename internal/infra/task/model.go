// Package task schedules generation jobs: a single execution slot, a FIFO queue, remote
// completion polling with a resumable timeout, and history persistence across restarts.
package task

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/henjicc/henji-server/internal/domain/generation"
	"github.com/henjicc/henji-server/internal/port/outbound"
)

// Status represents the status of a task.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusPending    Status = "pending"
	StatusGenerating Status = "generating"
	StatusSuccess    Status = "success"
	StatusError      Status = "error"
	StatusTimeout    Status = "timeout"
)

// Restart messages.
const (
	MessageInterruptedResumable = "interrupted by restart, resume to continue"
	MessageInterrupted          = "interrupted by restart"
	MessagePollTimedOut         = "still processing after polling window, resume to continue"
)

var (
	// ErrTaskNotFound is returned for unknown task ids.
	ErrTaskNotFound = errors.New("task not found")

	// ErrNotResumable is returned when resume is requested for a task without a remote
	// token or outside the timeout state.
	ErrNotResumable = errors.New("task is not resumable")

	// ErrCredentialMissing is returned when the model's provider has no credential.
	ErrCredentialMissing = errors.New("provider credential missing")

	// ErrStopped is returned when submitting to a stopped scheduler.
	ErrStopped = errors.New("scheduler stopped")
)

// Result describes a finished artifact.
type Result struct {
	URL       string    `json:"url,omitempty"`
	FilePath  string    `json:"file_path,omitempty"`
	MediaType string    `json:"media_type"`
	Prompt    string    `json:"prompt,omitempty"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
	Duration  float64   `json:"duration,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Task is one generation request tracked from submission to result.
type Task struct {
	ID                uuid.UUID            `json:"id"`
	MediaType         generation.MediaType `json:"media_type"`
	Prompt            string               `json:"prompt"`
	NegativePrompt    string               `json:"negative_prompt,omitempty"`
	Model             string               `json:"model"`
	Provider          string               `json:"provider"`
	Params            generation.Params    `json:"params,omitempty"`
	Options           generation.Options   `json:"options,omitempty"`
	UploadedFilePaths []string             `json:"uploaded_file_paths,omitempty"`
	Status            Status               `json:"status"`
	Progress          int                  `json:"progress"`
	Result            *Result              `json:"result,omitempty"`
	Error             string               `json:"error,omitempty"`
	Message           string               `json:"message,omitempty"`
	ServerTaskID      string               `json:"server_task_id,omitempty"`
	RequestID         string               `json:"request_id,omitempty"`
	ModelID           string               `json:"model_id,omitempty"`
	TimedOut          bool                 `json:"timed_out,omitempty"`
	CreatedAt         time.Time            `json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`

	// input holds the in-memory uploads until the task executes.
	input *SubmitRequest
}

// IsTerminal checks if the task is in a terminal state.
func (t *Task) IsTerminal() bool {
	return t.Status == StatusSuccess || t.Status == StatusError || t.Status == StatusTimeout
}

// IsActive reports whether the task is waiting for or holding the slot.
func (t *Task) IsActive() bool {
	return t.Status == StatusQueued || t.Status == StatusPending || t.Status == StatusGenerating
}

// Job returns the remote resume token.
func (t *Task) Job() outbound.RemoteJob {
	return outbound.RemoteJob{ServerTaskID: t.ServerTaskID, RequestID: t.RequestID, ModelID: t.ModelID}
}

// HasResumeToken reports whether the task carries a pollable remote id.
func (t *Task) HasResumeToken() bool {
	return t.Job().Valid()
}

// Resumable reports whether Resume would accept the task.
func (t *Task) Resumable() bool {
	return t.HasResumeToken() && (t.Status == StatusTimeout || (t.Status == StatusGenerating && t.TimedOut))
}

// Clone returns a copy safe to hand out of the scheduler lock.
func (t *Task) Clone() *Task {
	c := *t
	c.UploadedFilePaths = append([]string(nil), t.UploadedFilePaths...)
	if t.Result != nil {
		r := *t.Result
		c.Result = &r
	}
	c.input = nil
	return &c
}

// Filter selects tasks for listing and bulk deletion.
type Filter struct {
	Statuses  []Status
	MediaType generation.MediaType
	Limit     int
}

func (f *Filter) match(t *Task) bool {
	if f == nil {
		return true
	}
	if f.MediaType != "" && t.MediaType != f.MediaType {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if t.Status == s {
			return true
		}
	}
	return false
}

// SubmitRequest is a generation request.
type SubmitRequest struct {
	Model          string             `json:"model"`
	Prompt         string             `json:"prompt"`
	NegativePrompt string             `json:"negative_prompt,omitempty"`
	Params         generation.Params  `json:"params,omitempty"`
	Images         []generation.Asset `json:"-"`
	Videos         []generation.Asset `json:"-"`
}

func (r *SubmitRequest) buildContext() *generation.BuildContext {
	params := r.Params.Clone()
	return &generation.BuildContext{
		SelectedModel:  r.Model,
		Prompt:         r.Prompt,
		NegativePrompt: r.NegativePrompt,
		Params:         params,
		Images:         append([]generation.Asset(nil), r.Images...),
		Videos:         append([]generation.Asset(nil), r.Videos...),
	}
}
