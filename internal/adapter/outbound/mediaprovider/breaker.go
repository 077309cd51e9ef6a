package mediaprovider

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/henjicc/henji-server/internal/port/outbound"
	"github.com/henjicc/henji-server/internal/utils/metrics"
)

// BreakerConfig configures the per-provider circuit breaker.
type BreakerConfig struct {
	FailureThreshold uint32        `json:"failure_threshold" yaml:"failure_threshold" mapstructure:"failure_threshold"`
	MaxRequests      uint32        `json:"max_requests" yaml:"max_requests" mapstructure:"max_requests"`
	Interval         time.Duration `json:"interval" yaml:"interval" mapstructure:"interval"`
	Timeout          time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// DefaultBreakerConfig returns the default breaker configuration.
func DefaultBreakerConfig() *BreakerConfig {
	return &BreakerConfig{
		FailureThreshold: 5,
		MaxRequests:      1,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
	}
}

func newBreaker(provider string, cfg *BreakerConfig, m *metrics.Metrics, logger *zap.Logger) *gobreaker.CircuitBreaker[any] {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        provider,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// Rejections of a bad request say nothing about provider health.
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.StatusCode < 500 && apiErr.StatusCode != 429
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("provider breaker state changed",
				zap.String("provider", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			m.SetProviderHealth(name, to != gobreaker.StateOpen)
		},
	})
}

// BreakerAdapter guards a provider adapter with a circuit breaker and records request
// metrics.
type BreakerAdapter struct {
	next    outbound.MediaProviderPort
	breaker *gobreaker.CircuitBreaker[any]
	metrics *metrics.Metrics
}

// NewBreakerAdapter wraps next.
func NewBreakerAdapter(next outbound.MediaProviderPort, breaker *gobreaker.CircuitBreaker[any], m *metrics.Metrics) *BreakerAdapter {
	return &BreakerAdapter{next: next, breaker: breaker, metrics: m}
}

func (a *BreakerAdapter) Provider() string { return a.next.Provider() }

func (a *BreakerAdapter) Generate(ctx context.Context, req *outbound.GenerateRequest, onProgress func(int)) (*outbound.GenerateResult, error) {
	res, err := a.breaker.Execute(func() (any, error) {
		return a.next.Generate(ctx, req, onProgress)
	})
	a.metrics.RecordProviderRequest(a.Provider(), "generate", err)
	if err != nil {
		return nil, err
	}
	return res.(*outbound.GenerateResult), nil
}

func (a *BreakerAdapter) CheckStatus(ctx context.Context, job outbound.RemoteJob) (*outbound.JobStatus, error) {
	res, err := a.breaker.Execute(func() (any, error) {
		return a.next.CheckStatus(ctx, job)
	})
	a.metrics.RecordProviderRequest(a.Provider(), "status", err)
	if err != nil {
		return nil, err
	}
	return res.(*outbound.JobStatus), nil
}

var _ outbound.MediaProviderPort = (*BreakerAdapter)(nil)
