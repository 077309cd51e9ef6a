package outbound

import (
	"context"
	"errors"
)

// ErrProviderNotConfigured is returned when a provider has no adapter or no credential.
var ErrProviderNotConfigured = errors.New("provider not configured")

// GenerateRequest is a built provider call.
type GenerateRequest struct {
	TaskID         string         `json:"task_id"`
	Model          string         `json:"model"`
	MediaType      string         `json:"media_type"`
	Endpoint       string         `json:"endpoint"`
	Prompt         string         `json:"prompt"`
	NegativePrompt string         `json:"negative_prompt,omitempty"`
	Options        map[string]any `json:"options"`
}

// GenerateOutput is a finished artifact reported by a provider.
type GenerateOutput struct {
	URL      string  `json:"url,omitempty"`
	Data     []byte  `json:"-"`
	MIMEType string  `json:"mime_type,omitempty"`
	Width    int     `json:"width,omitempty"`
	Height   int     `json:"height,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// RemoteJob identifies asynchronous work on the provider side. It doubles as the resume
// token persisted with a task.
type RemoteJob struct {
	ServerTaskID string `json:"server_task_id,omitempty"`
	RequestID    string `json:"request_id,omitempty"`
	ModelID      string `json:"model_id,omitempty"`
}

// Valid reports whether the token can be polled.
func (j RemoteJob) Valid() bool {
	return j.ServerTaskID != "" || (j.RequestID != "" && j.ModelID != "")
}

// GenerateResult carries either a direct Output or a remote Job.
type GenerateResult struct {
	Output *GenerateOutput
	Job    *RemoteJob
}

// JobState is the normalized remote job state.
type JobState string

const (
	JobQueued     JobState = "QUEUED"
	JobProcessing JobState = "PROCESSING"
	JobSucceeded  JobState = "SUCCEEDED"
	JobFailed     JobState = "FAILED"
	JobUnknown    JobState = "UNKNOWN"
)

// JobStatus is one observation of a remote job.
type JobStatus struct {
	State    JobState
	Progress int
	Output   *GenerateOutput
	Reason   string
}

// MediaProviderPort talks to one generation back-end.
type MediaProviderPort interface {
	// Provider returns the provider id, e.g. "fal".
	Provider() string

	// Generate submits a request. onProgress may be called for synchronous work.
	Generate(ctx context.Context, req *GenerateRequest, onProgress func(int)) (*GenerateResult, error)

	// CheckStatus observes a remote job once.
	CheckStatus(ctx context.Context, job RemoteJob) (*JobStatus, error)
}

// MediaProviderResolverPort selects a configured adapter by provider id.
type MediaProviderResolverPort interface {
	// Resolve returns ErrProviderNotConfigured when the provider is unknown or has no
	// credential.
	Resolve(ctx context.Context, provider string) (MediaProviderPort, error)
}
