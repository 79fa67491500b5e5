// Package backoff retries fallible gateway operations with error-kind
// specific wait policies. Rate limits honor an embedded retry hint, transient
// overload backs off exponentially, and unclassified errors are retried only
// briefly so logic bugs are not masked as transience.
package backoff

import (
	"context"
	"math"
	"time"

	"github.com/canopyai/canopy/logging"
)

const (
	// DefaultMaxAttempts bounds every retried operation.
	DefaultMaxAttempts = 6

	// hintPadding is added on top of an explicit "retry in N s" hint.
	hintPadding = 1000 * time.Millisecond

	// rateLimitWait is the minimum wait after a rate limit without a hint.
	rateLimitWait = 6000 * time.Millisecond

	// transientBaseWait seeds the doubling schedule for transient overload.
	transientBaseWait = 2000 * time.Millisecond

	// unknownRetryLimit is the last attempt index at which an unclassified
	// error is still retried.
	unknownRetryLimit = 2
)

// Sleeper waits for the given duration or until the context is cancelled.
// Injected in tests to avoid real sleeps.
type Sleeper func(ctx context.Context, d time.Duration) error

// DefaultSleeper blocks on a real timer. It is the Sleeper used unless one
// is injected.
func DefaultSleeper(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Options configures the Controller.
type Options struct {
	MaxAttempts int
	Sleeper     Sleeper
	Logger      logging.Logger
}

// Controller executes operations with bounded, classified retries.
// No jitter is applied.
type Controller struct {
	maxAttempts int
	sleep       Sleeper
	logger      logging.Logger
}

// New creates a new Controller.
func New(optFns ...func(o *Options)) *Controller {
	opts := Options{
		MaxAttempts: DefaultMaxAttempts,
		Sleeper:     DefaultSleeper,
		Logger:      logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Controller{
		maxAttempts: opts.MaxAttempts,
		sleep:       opts.Sleeper,
		logger:      opts.Logger,
	}
}

// Do runs fn up to the attempt limit. The wait before each retry depends on
// the classification of the last error:
//
//   - rate limit with an explicit "retry in N s" hint: ceil(N*1000)+1000 ms,
//     re-read from the error on every attempt, never grown
//   - rate limit without a hint: at least 6000 ms
//   - transient overload: 2000 ms, doubling each attempt
//   - unclassified: treated as transient through attempt index 2, then fatal
//
// On the final attempt the original error is returned unchanged so callers
// can distinguish exhaustion from success.
func (c *Controller) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	transientWait := transientBaseWait

	var err error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}

		if attempt == c.maxAttempts-1 {
			break
		}

		class := Classify(err)

		var wait time.Duration
		switch class.Kind {
		case KindRateLimitHinted:
			wait = hintWait(class.Hint)
		case KindRateLimit:
			wait = rateLimitWait
		case KindTransient:
			wait = transientWait
			transientWait *= 2
		default:
			if attempt >= unknownRetryLimit {
				c.logger.Warn("giving up on unclassified error",
					"op", op, "attempt", attempt, "error", err)
				return err
			}
			wait = transientWait
			transientWait *= 2
		}

		c.logger.Info("retrying after failure",
			"op", op, "attempt", attempt, "kind", class.Kind.String(), "wait", wait, "error", err)

		if serr := c.sleep(ctx, wait); serr != nil {
			return serr
		}
	}

	c.logger.Warn("attempts exhausted", "op", op, "attempts", c.maxAttempts, "error", err)
	return err
}

// Execute runs a value-returning operation through the controller.
func Execute[T any](ctx context.Context, c *Controller, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := c.Do(ctx, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// hintWait converts a server-provided retry hint into the actual wait:
// the hint rounded up to whole seconds worth of millis, plus padding.
func hintWait(hint time.Duration) time.Duration {
	millis := math.Ceil(hint.Seconds() * 1000)
	return time.Duration(millis)*time.Millisecond + hintPadding
}
