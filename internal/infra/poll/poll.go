// Package poll drives a bounded completion poll against a remote job.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrJobFailed is returned when the remote job reports failure.
	ErrJobFailed = errors.New("task execution failed")

	// ErrPollTimeout is returned when attempts run out in a non-running state.
	ErrPollTimeout = errors.New("task timeout")
)

// State is the normalized remote job state.
type State string

const (
	StateQueued     State = "QUEUED"
	StateProcessing State = "PROCESSING"
	StateSucceeded  State = "SUCCEEDED"
	StateFailed     State = "FAILED"
	StateUnknown    State = "UNKNOWN"
)

// Running reports whether a job in this state may still complete.
func (s State) Running() bool {
	return s == StateQueued || s == StateProcessing
}

// Status is one observation of a remote job.
type Status[T any] struct {
	State State
	// Progress is a remote hint in [0,100]; zero when the provider gives none.
	Progress int
	Result   *T
	Reason   string
}

// CheckFunc observes the remote job once.
type CheckFunc[T any] func(ctx context.Context) (Status[T], error)

// Config bounds a poll cycle.
type Config struct {
	Interval     time.Duration `json:"interval" yaml:"interval" mapstructure:"interval"`
	MaxAttempts  int           `json:"max_attempts" yaml:"max_attempts" mapstructure:"max_attempts"`
	CheckTimeout time.Duration `json:"check_timeout" yaml:"check_timeout" mapstructure:"check_timeout"`
}

// DefaultConfig polls every 3 seconds up to 120 times.
func DefaultConfig() Config {
	return Config{
		Interval:     3 * time.Second,
		MaxAttempts:  120,
		CheckTimeout: 30 * time.Second,
	}
}

// Loop runs poll cycles with a fixed configuration.
type Loop struct {
	cfg    Config
	logger *zap.Logger
}

// New creates a Loop. Zero config fields take their defaults.
func New(cfg Config, logger *zap.Logger) *Loop {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = def.CheckTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{cfg: cfg, logger: logger.Named("poll")}
}

// Config returns the effective configuration.
func (l *Loop) Config() Config {
	return l.cfg
}

// Outcome is the result of a finished cycle.
type Outcome[T any] struct {
	Result T
	// TimedOut is set when attempts ran out while the job was still running.
	TimedOut bool
	Attempts int
}

// Run polls check until success, failure or attempt exhaustion. Check errors are logged
// and consume an attempt. onProgress sees strictly increasing values and 100 on success.
func Run[T any](ctx context.Context, l *Loop, check CheckFunc[T], onProgress func(int)) (Outcome[T], error) {
	var out Outcome[T]
	if onProgress == nil {
		onProgress = func(int) {}
	}

	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	progress := 0
	last := StateUnknown

	for attempt := 1; attempt <= l.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return out, ctx.Err()
			case <-ticker.C:
			}
		}
		out.Attempts = attempt

		checkCtx, cancel := context.WithTimeout(ctx, l.cfg.CheckTimeout)
		st, err := check(checkCtx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			l.logger.Warn("poll check failed",
				zap.Int("attempt", attempt),
				zap.Error(err))
			continue
		}
		last = st.State

		switch st.State {
		case StateSucceeded:
			if st.Result != nil {
				onProgress(100)
				out.Result = *st.Result
				return out, nil
			}
		case StateFailed:
			if st.Reason != "" {
				return out, fmt.Errorf("%w: %s", ErrJobFailed, st.Reason)
			}
			return out, ErrJobFailed
		}

		next := EaseProgress(attempt, l.cfg.MaxAttempts, progress)
		if hint := min(95, st.Progress); hint > next {
			next = hint
		}
		if next != progress {
			progress = next
			onProgress(progress)
		}
	}

	if last.Running() {
		out.TimedOut = true
		return out, nil
	}
	return out, ErrPollTimeout
}
