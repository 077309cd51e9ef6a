package mediaprovider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/henjicc/henji-server/internal/port/outbound"
)

const (
	// DefaultKIEBaseURL is the KIE jobs API.
	DefaultKIEBaseURL = "https://api.kie.ai"
	// DefaultKIEUploadURL receives inline images before a job references them.
	DefaultKIEUploadURL = "https://kieai.redpandaai.co/api/file-stream-upload"

	kieUploadPath = "henji-uploads"
)

// kieImageKeys are the option keys that may carry inline images.
var kieImageKeys = []string{"image_input", "image_urls", "image_url"}

// KIEAdapter submits jobs to KIE's unified createTask endpoint. KIE only accepts image
// URLs, so data URLs are uploaded first.
type KIEAdapter struct {
	httpBase
	uploadURL string
}

// NewKIEAdapter creates a KIE adapter. uploadURL may be empty for the default.
func NewKIEAdapter(client *http.Client, cfg Config, uploadURL string) *KIEAdapter {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultKIEBaseURL
	}
	if uploadURL == "" {
		uploadURL = DefaultKIEUploadURL
	}
	return &KIEAdapter{
		httpBase:  httpBase{provider: "kie", client: client, baseURL: base, auth: bearer(cfg.APIKey)},
		uploadURL: uploadURL,
	}
}

func (a *KIEAdapter) Provider() string { return a.provider }

func (a *KIEAdapter) Generate(ctx context.Context, req *outbound.GenerateRequest, _ func(int)) (*outbound.GenerateResult, error) {
	if req.Endpoint == "" {
		return nil, errors.New("kie: empty model")
	}
	input := make(map[string]any, len(req.Options)+1)
	for k, v := range req.Options {
		input[k] = v
	}
	if err := a.uploadInline(ctx, input); err != nil {
		return nil, err
	}
	input["prompt"] = req.Prompt
	if req.NegativePrompt != "" {
		input["negative_prompt"] = req.NegativePrompt
	}

	body, err := json.Marshal(map[string]any{"model": req.Endpoint, "input": input})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	resp, err := a.do(ctx, http.MethodPost, "/api/v1/jobs/createTask", body, nil)
	if err != nil {
		return nil, err
	}
	// KIE reports errors inside a 200 response.
	res := gjson.ParseBytes(resp)
	if code := res.Get("code").Int(); code != 0 && code != http.StatusOK {
		return nil, &APIError{Provider: a.provider, StatusCode: int(code), Message: errorMessage(resp)}
	}
	taskID := res.Get("data.taskId").String()
	if taskID == "" {
		return nil, errors.New("kie: response has no taskId")
	}
	return &outbound.GenerateResult{Job: &outbound.RemoteJob{ServerTaskID: taskID}}, nil
}

func (a *KIEAdapter) CheckStatus(ctx context.Context, job outbound.RemoteJob) (*outbound.JobStatus, error) {
	if job.ServerTaskID == "" {
		return nil, errors.New("kie: job has no task id")
	}
	resp, err := a.do(ctx, http.MethodGet, "/api/v1/jobs/recordInfo?taskId="+url.QueryEscape(job.ServerTaskID), nil, nil)
	if err != nil {
		return nil, err
	}
	data := gjson.GetBytes(resp, "data")
	st := &outbound.JobStatus{Progress: int(data.Get("progress").Int())}

	switch data.Get("state").String() {
	case "waiting", "queuing":
		st.State = outbound.JobQueued
	case "generating":
		st.State = outbound.JobProcessing
	case "success":
		// resultJson is a JSON document encoded as a string.
		u := gjson.Get(data.Get("resultJson").String(), "resultUrls.0").String()
		if u == "" {
			st.State = outbound.JobFailed
			st.Reason = "task succeeded without media"
			return st, nil
		}
		st.State = outbound.JobSucceeded
		st.Progress = 100
		st.Output = &outbound.GenerateOutput{URL: u}
	case "fail":
		st.State = outbound.JobFailed
		st.Reason = data.Get("failMsg").String()
		if st.Reason == "" {
			st.Reason = "task failed"
		}
	default:
		st.State = outbound.JobUnknown
	}
	return st, nil
}

// uploadInline replaces every data URL under kieImageKeys with a hosted URL.
func (a *KIEAdapter) uploadInline(ctx context.Context, input map[string]any) error {
	for _, key := range kieImageKeys {
		switch v := input[key].(type) {
		case string:
			u, err := a.hosted(ctx, v, 0)
			if err != nil {
				return err
			}
			input[key] = u
		case []any:
			out := make([]any, len(v))
			for i, item := range v {
				s, _ := item.(string)
				u, err := a.hosted(ctx, s, i)
				if err != nil {
					return err
				}
				out[i] = u
			}
			input[key] = out
		}
	}
	return nil
}

func (a *KIEAdapter) hosted(ctx context.Context, s string, index int) (string, error) {
	if !strings.HasPrefix(s, "data:") {
		return s, nil
	}
	data, mimeType, err := decodeDataURL(s)
	if err != nil {
		return "", err
	}
	ext := ".bin"
	if exts, _ := mime.ExtensionsByType(mimeType); len(exts) > 0 {
		ext = exts[0]
	}
	return a.upload(ctx, data, fmt.Sprintf("image-%d%s", index, ext), mimeType)
}

func (a *KIEAdapter) upload(ctx context.Context, data []byte, filename, mimeType string) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("write form file: %w", err)
	}
	_ = w.WriteField("uploadPath", kieUploadPath)
	_ = w.WriteField("fileName", filename)
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.uploadURL, &buf)
	if err != nil {
		return "", fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	a.auth(req.Header)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", filename, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read upload response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &APIError{Provider: a.provider, StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}
	u := firstString(gjson.ParseBytes(body), "data.fileUrl", "data.downloadUrl")
	if u == "" {
		return "", fmt.Errorf("kie: upload of %s returned no url", filename)
	}
	return u, nil
}

// decodeDataURL splits a base64 data URL into its bytes and MIME type.
func decodeDataURL(s string) ([]byte, string, error) {
	header, encoded, ok := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return nil, "", errors.New("malformed data URL")
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", fmt.Errorf("decode data URL: %w", err)
	}
	mimeType := strings.TrimSuffix(header, ";base64")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return data, mimeType, nil
}

var _ outbound.MediaProviderPort = (*KIEAdapter)(nil)
