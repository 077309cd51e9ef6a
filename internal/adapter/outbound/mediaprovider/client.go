package mediaprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/henjicc/henji-server/internal/infra/poll"
)

const maxResponseBytes = 32 << 20

// Config configures one provider endpoint.
type Config struct {
	BaseURL string        `json:"base_url" yaml:"base_url" mapstructure:"base_url"`
	APIKey  string        `json:"-" yaml:"api_key" mapstructure:"api_key"`
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// APIError is a non-2xx provider response. Message is taken verbatim from the body.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s (status %d)", e.Provider, e.Message, e.StatusCode)
}

// errorMessage digs the human readable message out of the error shapes the providers
// use.
func errorMessage(body []byte) string {
	for _, path := range []string{"error.message", "message", "msg", "detail.0.msg", "detail", "error", "reason"} {
		if v := gjson.GetBytes(body, path); v.Exists() && v.Type == gjson.String && v.String() != "" {
			return v.String()
		}
	}
	if s := strings.TrimSpace(string(body)); s != "" && len(s) < 512 {
		return s
	}
	return "request failed"
}

// httpBase holds what every JSON provider adapter shares.
type httpBase struct {
	provider string
	client   *http.Client
	baseURL  string
	auth     func(h http.Header)
}

func bearer(key string) func(http.Header) {
	return func(h http.Header) { h.Set("Authorization", "Bearer "+key) }
}

func (b *httpBase) url(p string) string {
	if strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") {
		return p
	}
	return strings.TrimRight(b.baseURL, "/") + "/" + strings.TrimLeft(p, "/")
}

// do sends a request and returns the body of a 2xx response.
func (b *httpBase) do(ctx context.Context, method, path string, body []byte, header http.Header) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, b.url(path), rd)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if b.auth != nil {
		b.auth(req.Header)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Provider: b.provider, StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
	}
	if !gjson.ValidBytes(respBody) {
		return nil, fmt.Errorf("%s: invalid JSON response", b.provider)
	}
	return respBody, nil
}

// payload renders built options plus the prompt fields as a JSON body.
func payload(opts map[string]any, fields map[string]string) ([]byte, error) {
	if opts == nil {
		opts = map[string]any{}
	}
	body, err := json.Marshal(opts)
	if err != nil {
		return nil, fmt.Errorf("marshal options: %w", err)
	}
	for path, v := range fields {
		if v == "" {
			continue
		}
		if body, err = sjson.SetBytes(body, path, v); err != nil {
			return nil, fmt.Errorf("set %s: %w", path, err)
		}
	}
	return body, nil
}

// firstString returns the first non-empty string found at paths.
func firstString(res gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := res.Get(p); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

// reportWhile feeds queue-style progress estimates to onProgress until the returned stop
// func is called. It backs synchronous endpoints that give no progress of their own.
func reportWhile(ctx context.Context, onProgress func(int), interval time.Duration, expected int) (stop func()) {
	if onProgress == nil {
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for i := 1; ; i++ {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				onProgress(poll.Estimate(i, expected))
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
