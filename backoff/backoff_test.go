package backoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecordingController(maxAttempts int) (*Controller, *[]time.Duration) {
	var waits []time.Duration
	c := New(func(o *Options) {
		o.MaxAttempts = maxAttempts
		o.Sleeper = func(_ context.Context, d time.Duration) error {
			waits = append(waits, d)
			return nil
		}
	})
	return c, &waits
}

func TestDoSucceedsWithoutRetry(t *testing.T) {
	c, waits := newRecordingController(6)

	calls := 0
	err := c.Do(context.Background(), "op", func(context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *waits)
}

func TestDoHintedRateLimitWait(t *testing.T) {
	c, waits := newRecordingController(6)

	calls := 0
	err := c.Do(context.Background(), "op", func(context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("rate limit exceeded, retry in 3.5s")
		}
		return nil
	})

	require.NoError(t, err)
	require.Len(t, *waits, 1)
	// ceil(3.5*1000)+1000 ms
	assert.Equal(t, 4500*time.Millisecond, (*waits)[0])
}

func TestDoHintedWaitReReadEachAttempt(t *testing.T) {
	c, waits := newRecordingController(6)

	hints := []string{"retry in 2s", "retry in 10s"}
	calls := 0
	err := c.Do(context.Background(), "op", func(context.Context) error {
		calls++
		if calls <= len(hints) {
			return errors.New("quota exhausted, " + hints[calls-1])
		}
		return nil
	})

	require.NoError(t, err)
	require.Len(t, *waits, 2)
	assert.Equal(t, 3000*time.Millisecond, (*waits)[0])
	assert.Equal(t, 11000*time.Millisecond, (*waits)[1])
}

func TestDoUnhintedRateLimitWait(t *testing.T) {
	c, waits := newRecordingController(6)

	calls := 0
	err := c.Do(context.Background(), "op", func(context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("429 too many requests")
		}
		return nil
	})

	require.NoError(t, err)
	require.Len(t, *waits, 1)
	assert.GreaterOrEqual(t, (*waits)[0], 6000*time.Millisecond)
}

func TestDoTransientDoubles(t *testing.T) {
	c, waits := newRecordingController(6)

	calls := 0
	err := c.Do(context.Background(), "op", func(context.Context) error {
		calls++
		if calls <= 3 {
			return errors.New("model is overloaded")
		}
		return nil
	})

	require.NoError(t, err)
	require.Len(t, *waits, 3)
	assert.Equal(t, 2000*time.Millisecond, (*waits)[0])
	assert.Equal(t, 4000*time.Millisecond, (*waits)[1])
	assert.Equal(t, 8000*time.Millisecond, (*waits)[2])
}

func TestDoUnclassifiedFatalAfterBriefRetry(t *testing.T) {
	c, waits := newRecordingController(6)

	boom := errors.New("nil pointer in tool handler")
	calls := 0
	err := c.Do(context.Background(), "op", func(context.Context) error {
		calls++
		return boom
	})

	require.Error(t, err)
	assert.Same(t, boom, err)
	// Retried at attempt index 0 and 1, fatal at index 2.
	assert.Equal(t, 3, calls)
	assert.Len(t, *waits, 2)
}

func TestDoExhaustionReturnsOriginalError(t *testing.T) {
	c, _ := newRecordingController(6)

	boom := errors.New("service unavailable")
	calls := 0
	err := c.Do(context.Background(), "op", func(context.Context) error {
		calls++
		return boom
	})

	require.Error(t, err)
	assert.Same(t, boom, err)
	assert.Equal(t, 6, calls)
}

func TestDoRespectsContextDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	c := New(func(o *Options) {
		o.Sleeper = func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		}
	})

	err := c.Do(ctx, "op", func(context.Context) error {
		return errors.New("overloaded")
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecuteReturnsValue(t *testing.T) {
	c, _ := newRecordingController(6)

	calls := 0
	v, err := Execute(context.Background(), c, "op", func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("overloaded")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind Kind
		hint time.Duration
	}{
		{"hinted", errors.New("rate limit: retry in 7s"), KindRateLimitHinted, 7 * time.Second},
		{"hinted fractional", errors.New("quota hit, retry in 0.5s please"), KindRateLimitHinted, 500 * time.Millisecond},
		{"unhinted 429", errors.New("got 429 from upstream"), KindRateLimit, 0},
		{"resource exhausted", errors.New("RESOURCE_EXHAUSTED"), KindRateLimit, 0},
		{"overloaded", errors.New("the model is overloaded"), KindTransient, 0},
		{"unavailable", errors.New("UNAVAILABLE: try again"), KindTransient, 0},
		{"unknown", errors.New("invalid argument"), KindUnknown, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			class := Classify(tt.err)
			assert.Equal(t, tt.kind, class.Kind)
			assert.Equal(t, tt.hint, class.Hint)
		})
	}
}
