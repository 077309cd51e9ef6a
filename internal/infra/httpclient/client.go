// Package httpclient builds the pooled client shared by the provider adapters and the
// artifact downloader.
package httpclient

import (
	"net"
	"net/http"
	"time"

	"github.com/henjicc/henji-server/internal/infra/config"
)

// UserAgent is sent on every outgoing request that does not set its own.
const UserAgent = "henji-server/1.0"

// New creates a new HTTP client with the given configuration.
func New(cfg config.HTTPClientConfig) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.DialTimeout,
			KeepAlive: cfg.KeepAlive,
		}).DialContext,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		TLSHandshakeTimeout: cfg.TLSHandshakeTimeout,
		ForceAttemptHTTP2:   true,
	}

	return &http.Client{
		Transport: &userAgentTransport{next: transport},
		Timeout:   cfg.ResponseTimeout,
	}
}

// WithTimeout returns a client that shares the connection pool of c but has its own
// overall timeout. Slow synchronous providers get a longer budget this way. A
// non-positive d returns c unchanged.
func WithTimeout(c *http.Client, d time.Duration) *http.Client {
	if c == nil || d <= 0 {
		return c
	}
	clone := *c
	clone.Timeout = d
	return &clone
}

type userAgentTransport struct {
	next http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", UserAgent)
	}
	return t.next.RoundTrip(req)
}
