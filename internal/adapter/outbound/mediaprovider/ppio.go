package mediaprovider

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/henjicc/henji-server/internal/port/outbound"
)

// DefaultPPIOBaseURL is the PPIO v3 API.
const DefaultPPIOBaseURL = "https://api.ppinfra.com/v3"

// PPIOAdapter calls PPIO endpoints. Endpoints under /async return a task id; others
// answer synchronously with the finished images.
type PPIOAdapter struct {
	httpBase
	// syncTick paces progress estimates while a synchronous call is in flight.
	syncTick time.Duration
}

// NewPPIOAdapter creates a PPIO adapter.
func NewPPIOAdapter(client *http.Client, cfg Config) *PPIOAdapter {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultPPIOBaseURL
	}
	return &PPIOAdapter{
		httpBase: httpBase{provider: "ppio", client: client, baseURL: base, auth: bearer(cfg.APIKey)},
		syncTick: time.Second,
	}
}

func (a *PPIOAdapter) Provider() string { return a.provider }

func (a *PPIOAdapter) Generate(ctx context.Context, req *outbound.GenerateRequest, onProgress func(int)) (*outbound.GenerateResult, error) {
	if req.Endpoint == "" {
		return nil, errors.New("ppio: empty endpoint")
	}
	fields := map[string]string{
		"prompt":          req.Prompt,
		"negative_prompt": req.NegativePrompt,
	}
	// Speech endpoints read the prompt from text.
	if _, ok := req.Options["text"]; ok {
		delete(fields, "prompt")
	}
	body, err := payload(req.Options, fields)
	if err != nil {
		return nil, err
	}

	stop := reportWhile(ctx, onProgress, a.syncTick, 20)
	resp, err := a.do(ctx, http.MethodPost, req.Endpoint, body, nil)
	stop()
	if err != nil {
		return nil, err
	}

	if id := gjson.GetBytes(resp, "task_id").String(); id != "" {
		return &outbound.GenerateResult{Job: &outbound.RemoteJob{ServerTaskID: id}}, nil
	}
	if out := parsePPIOOutput(gjson.ParseBytes(resp)); out != nil {
		return &outbound.GenerateResult{Output: out}, nil
	}
	return nil, errors.New("ppio: response has neither task_id nor media")
}

func (a *PPIOAdapter) CheckStatus(ctx context.Context, job outbound.RemoteJob) (*outbound.JobStatus, error) {
	if job.ServerTaskID == "" {
		return nil, errors.New("ppio: job has no task id")
	}
	resp, err := a.do(ctx, http.MethodGet, "/async/task-result?task_id="+url.QueryEscape(job.ServerTaskID), nil, nil)
	if err != nil {
		return nil, err
	}
	res := gjson.ParseBytes(resp)
	st := &outbound.JobStatus{Progress: int(res.Get("task.progress_percent").Int())}

	switch res.Get("task.status").String() {
	case "TASK_STATUS_QUEUED":
		st.State = outbound.JobQueued
	case "TASK_STATUS_PROCESSING":
		st.State = outbound.JobProcessing
	case "TASK_STATUS_SUCCEED", "TASK_STATUS_SUCCEEDED":
		st.Output = parsePPIOOutput(res)
		if st.Output == nil {
			st.State = outbound.JobFailed
			st.Reason = "task succeeded without media"
			return st, nil
		}
		st.State = outbound.JobSucceeded
		st.Progress = 100
	case "TASK_STATUS_FAILED":
		st.State = outbound.JobFailed
		st.Reason = firstString(res, "task.reason", "reason")
		if st.Reason == "" {
			st.Reason = "task failed"
		}
	default:
		st.State = outbound.JobUnknown
	}
	return st, nil
}

// parsePPIOOutput reads the first artifact. Images come either as bare URL strings or as
// objects with image_url.
func parsePPIOOutput(res gjson.Result) *outbound.GenerateOutput {
	if img := res.Get("images.0"); img.Exists() {
		if img.Type == gjson.String {
			return &outbound.GenerateOutput{URL: img.String()}
		}
		if u := img.Get("image_url").String(); u != "" {
			return &outbound.GenerateOutput{URL: u, MIMEType: mimeFromType("image", img.Get("image_type").String())}
		}
	}
	if u := res.Get("videos.0.video_url").String(); u != "" {
		return &outbound.GenerateOutput{URL: u, MIMEType: mimeFromType("video", res.Get("videos.0.video_type").String())}
	}
	if a := res.Get("audio"); a.Type == gjson.String && strings.HasPrefix(a.String(), "http") {
		return &outbound.GenerateOutput{URL: a.String()}
	}
	if u := res.Get("audios.0.audio_url").String(); u != "" {
		return &outbound.GenerateOutput{URL: u, MIMEType: mimeFromType("audio", res.Get("audios.0.audio_type").String())}
	}
	return nil
}

func mimeFromType(kind, ext string) string {
	if ext == "" {
		return ""
	}
	if ext == "jpg" {
		ext = "jpeg"
	}
	if ext == "mp3" {
		ext = "mpeg"
	}
	return kind + "/" + ext
}

var _ outbound.MediaProviderPort = (*PPIOAdapter)(nil)
