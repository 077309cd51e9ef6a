package mediaprovider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/henjicc/henji-server/internal/port/outbound"
)

// DefaultFalBaseURL is the fal queue API.
const DefaultFalBaseURL = "https://queue.fal.run"

// FalAdapter submits requests to the fal queue and polls them by request id.
type FalAdapter struct {
	httpBase
}

// NewFalAdapter creates a fal adapter. fal expects "Key <key>" rather than a bearer token.
func NewFalAdapter(client *http.Client, cfg Config) *FalAdapter {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultFalBaseURL
	}
	return &FalAdapter{httpBase{
		provider: "fal",
		client:   client,
		baseURL:  base,
		auth:     func(h http.Header) { h.Set("Authorization", "Key "+cfg.APIKey) },
	}}
}

func (a *FalAdapter) Provider() string { return a.provider }

// falApp returns the application id, the first two segments of an endpoint.
// Status and result URLs live under the app, not the full sub-path.
func falApp(endpoint string) string {
	parts := strings.Split(strings.Trim(endpoint, "/"), "/")
	if len(parts) <= 2 {
		return strings.Join(parts, "/")
	}
	return parts[0] + "/" + parts[1]
}

func (a *FalAdapter) Generate(ctx context.Context, req *outbound.GenerateRequest, _ func(int)) (*outbound.GenerateResult, error) {
	if req.Endpoint == "" {
		return nil, errors.New("fal: empty endpoint")
	}
	body, err := payload(req.Options, map[string]string{
		"prompt":          req.Prompt,
		"negative_prompt": req.NegativePrompt,
	})
	if err != nil {
		return nil, err
	}

	resp, err := a.do(ctx, http.MethodPost, req.Endpoint, body, nil)
	if err != nil {
		return nil, err
	}
	requestID := gjson.GetBytes(resp, "request_id").String()
	if requestID == "" {
		return nil, errors.New("fal: response has no request_id")
	}
	return &outbound.GenerateResult{Job: &outbound.RemoteJob{
		RequestID: requestID,
		ModelID:   falApp(req.Endpoint),
	}}, nil
}

func (a *FalAdapter) CheckStatus(ctx context.Context, job outbound.RemoteJob) (*outbound.JobStatus, error) {
	if job.RequestID == "" || job.ModelID == "" {
		return nil, errors.New("fal: job needs request and model id")
	}
	prefix := fmt.Sprintf("%s/requests/%s", falApp(job.ModelID), url.PathEscape(job.RequestID))

	resp, err := a.do(ctx, http.MethodGet, prefix+"/status", nil, nil)
	if err != nil {
		return nil, err
	}

	status := gjson.GetBytes(resp, "status").String()
	switch status {
	case "IN_QUEUE":
		return &outbound.JobStatus{State: outbound.JobQueued}, nil
	case "IN_PROGRESS":
		return &outbound.JobStatus{State: outbound.JobProcessing}, nil
	case "COMPLETED":
		if msg := gjson.GetBytes(resp, "error").String(); msg != "" {
			return &outbound.JobStatus{State: outbound.JobFailed, Reason: msg}, nil
		}
	case "FAILED", "ERROR", "CANCELLED":
		return &outbound.JobStatus{State: outbound.JobFailed, Reason: errorMessage(resp)}, nil
	default:
		return &outbound.JobStatus{State: outbound.JobUnknown}, nil
	}

	result, err := a.do(ctx, http.MethodGet, prefix, nil, nil)
	if err != nil {
		return nil, err
	}
	out, err := parseFalResult(result)
	if err != nil {
		return &outbound.JobStatus{State: outbound.JobFailed, Reason: err.Error()}, nil
	}
	return &outbound.JobStatus{State: outbound.JobSucceeded, Progress: 100, Output: out}, nil
}

// parseFalResult accepts both the bare queue payload and the SDK's {data: ...} envelope.
func parseFalResult(body []byte) (*outbound.GenerateOutput, error) {
	res := gjson.ParseBytes(body)
	if d := res.Get("data"); d.IsObject() {
		res = d
	}
	if u := res.Get("video.url").String(); u != "" {
		return &outbound.GenerateOutput{URL: u, MIMEType: res.Get("video.content_type").String()}, nil
	}
	if img := res.Get("images.0"); img.Exists() && img.Get("url").String() != "" {
		return &outbound.GenerateOutput{
			URL:      img.Get("url").String(),
			MIMEType: img.Get("content_type").String(),
			Width:    int(img.Get("width").Int()),
			Height:   int(img.Get("height").Int()),
		}, nil
	}
	if u := res.Get("audio.url").String(); u != "" {
		return &outbound.GenerateOutput{URL: u, MIMEType: res.Get("audio.content_type").String()}, nil
	}
	return nil, errors.New("fal: result has no media")
}

var _ outbound.MediaProviderPort = (*FalAdapter)(nil)
