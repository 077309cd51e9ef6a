package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastLoop(maxAttempts int) *Loop {
	return New(Config{Interval: time.Millisecond, MaxAttempts: maxAttempts, CheckTimeout: time.Second}, nil)
}

func sequence(states ...Status[string]) (CheckFunc[string], *int) {
	calls := 0
	return func(context.Context) (Status[string], error) {
		i := calls
		calls++
		if i >= len(states) {
			return states[len(states)-1], nil
		}
		return states[i], nil
	}, &calls
}

func TestRun_Succeeds(t *testing.T) {
	result := "https://cdn/x.mp4"
	check, calls := sequence(
		Status[string]{State: StateQueued},
		Status[string]{State: StateProcessing},
		Status[string]{State: StateSucceeded, Result: &result},
	)

	var seen []int
	out, err := Run(context.Background(), fastLoop(10), check, func(p int) { seen = append(seen, p) })

	require.NoError(t, err)
	assert.Equal(t, result, out.Result)
	assert.False(t, out.TimedOut)
	assert.Equal(t, 3, *calls)
	require.NotEmpty(t, seen)
	assert.Equal(t, 100, seen[len(seen)-1])
	for i := 1; i < len(seen); i++ {
		assert.Greater(t, seen[i], seen[i-1])
	}
}

func TestRun_Failed(t *testing.T) {
	check, _ := sequence(Status[string]{State: StateFailed, Reason: "nsfw"})

	_, err := Run(context.Background(), fastLoop(10), check, nil)

	assert.ErrorIs(t, err, ErrJobFailed)
	assert.Contains(t, err.Error(), "nsfw")
}

func TestRun_TimesOutResumably(t *testing.T) {
	check, calls := sequence(Status[string]{State: StateProcessing})

	var last int
	out, err := Run(context.Background(), fastLoop(120), check, func(p int) { last = p })

	require.NoError(t, err)
	assert.True(t, out.TimedOut)
	assert.Equal(t, 120, *calls)
	assert.Equal(t, 120, out.Attempts)
	assert.LessOrEqual(t, last, 95)
}

func TestRun_TimesOutFatally(t *testing.T) {
	check, _ := sequence(Status[string]{State: StateUnknown})

	_, err := Run(context.Background(), fastLoop(3), check, nil)

	assert.ErrorIs(t, err, ErrPollTimeout)
}

func TestRun_CheckErrorsConsumeAttempts(t *testing.T) {
	result := "ok"
	calls := 0
	check := func(context.Context) (Status[string], error) {
		calls++
		if calls < 3 {
			return Status[string]{}, errors.New("503")
		}
		return Status[string]{State: StateSucceeded, Result: &result}, nil
	}

	out, err := Run(context.Background(), fastLoop(5), check, nil)

	require.NoError(t, err)
	assert.Equal(t, "ok", out.Result)
	assert.Equal(t, 3, out.Attempts)
}

func TestRun_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	check := func(context.Context) (Status[string], error) {
		cancel()
		return Status[string]{State: StateProcessing}, nil
	}

	_, err := Run(ctx, fastLoop(5), check, nil)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestEaseProgress(t *testing.T) {
	assert.Equal(t, 1, EaseProgress(0, 120, 0))
	assert.Equal(t, 95, EaseProgress(120, 120, 50))
	assert.Equal(t, 95, EaseProgress(200, 120, 95))
	assert.Equal(t, 11, EaseProgress(1, 120, 10))

	prev := 0
	for i := 1; i <= 120; i++ {
		next := EaseProgress(i, 120, prev)
		assert.GreaterOrEqual(t, next, prev)
		assert.LessOrEqual(t, next, 95)
		prev = next
	}
	assert.Equal(t, 95, prev)
}

func TestEstimate(t *testing.T) {
	assert.Equal(t, 0, Estimate(0, 20))
	assert.Equal(t, 71, Estimate(10, 20))
	assert.Equal(t, 95, Estimate(20, 20))
	assert.Equal(t, 97, Estimate(30, 20))
	assert.LessOrEqual(t, Estimate(10000, 20), 99)
}
