package mediaprovider

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/tidwall/gjson"

	"github.com/henjicc/henji-server/internal/port/outbound"
)

// DefaultModelScopeBaseURL is the ModelScope inference API.
const DefaultModelScopeBaseURL = "https://api-inference.modelscope.cn"

// ModelScopeAdapter uses the OpenAI-style image endpoint in async mode.
type ModelScopeAdapter struct {
	httpBase
}

// NewModelScopeAdapter creates a ModelScope adapter.
func NewModelScopeAdapter(client *http.Client, cfg Config) *ModelScopeAdapter {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultModelScopeBaseURL
	}
	return &ModelScopeAdapter{httpBase{provider: "modelscope", client: client, baseURL: base, auth: bearer(cfg.APIKey)}}
}

func (a *ModelScopeAdapter) Provider() string { return a.provider }

func (a *ModelScopeAdapter) Generate(ctx context.Context, req *outbound.GenerateRequest, _ func(int)) (*outbound.GenerateResult, error) {
	if req.Endpoint == "" {
		return nil, errors.New("modelscope: empty model")
	}
	body, err := payload(req.Options, map[string]string{
		"model":           req.Endpoint,
		"prompt":          req.Prompt,
		"negative_prompt": req.NegativePrompt,
	})
	if err != nil {
		return nil, err
	}

	resp, err := a.do(ctx, http.MethodPost, "/v1/images/generations", body, http.Header{
		"X-ModelScope-Async-Mode": {"true"},
	})
	if err != nil {
		return nil, err
	}
	res := gjson.ParseBytes(resp)
	if id := res.Get("task_id").String(); id != "" {
		return &outbound.GenerateResult{Job: &outbound.RemoteJob{ServerTaskID: id}}, nil
	}
	// Some models ignore async mode and answer inline.
	if u := firstString(res, "images.0.url", "output_images.0"); u != "" {
		return &outbound.GenerateResult{Output: &outbound.GenerateOutput{URL: u}}, nil
	}
	return nil, errors.New("modelscope: response has neither task_id nor images")
}

func (a *ModelScopeAdapter) CheckStatus(ctx context.Context, job outbound.RemoteJob) (*outbound.JobStatus, error) {
	if job.ServerTaskID == "" {
		return nil, errors.New("modelscope: job has no task id")
	}
	resp, err := a.do(ctx, http.MethodGet, "/v1/tasks/"+url.PathEscape(job.ServerTaskID), nil, http.Header{
		"X-ModelScope-Task-Type": {"image_generation"},
	})
	if err != nil {
		return nil, err
	}
	res := gjson.ParseBytes(resp)

	switch res.Get("task_status").String() {
	case "PENDING":
		return &outbound.JobStatus{State: outbound.JobQueued}, nil
	case "RUNNING", "PROCESSING":
		return &outbound.JobStatus{State: outbound.JobProcessing}, nil
	case "SUCCEED", "SUCCEEDED":
		u := res.Get("output_images.0").String()
		if u == "" {
			return &outbound.JobStatus{State: outbound.JobFailed, Reason: "task succeeded without media"}, nil
		}
		return &outbound.JobStatus{
			State:    outbound.JobSucceeded,
			Progress: 100,
			Output:   &outbound.GenerateOutput{URL: u},
		}, nil
	case "FAILED":
		reason := firstString(res, "errors.message", "message")
		if reason == "" {
			reason = "task failed"
		}
		return &outbound.JobStatus{State: outbound.JobFailed, Reason: reason}, nil
	}
	return &outbound.JobStatus{State: outbound.JobUnknown}, nil
}

var _ outbound.MediaProviderPort = (*ModelScopeAdapter)(nil)
