package retry

import (
	"context"
	"log/slog"
	"time"
)

// Default delay and timeout parameters.
const (
	DefaultMaxRetries        = 3
	DefaultInitialDelay      = 1 * time.Second
	DefaultMaxDelay          = 32 * time.Second
	DefaultBackoffMultiplier = 2.0
	DefaultTimeout           = 30 * time.Second
)

// Options controls the retry and timeout behavior of Do.
type Options struct {
	// MaxRetries is the number of retries after the initial attempt, so an
	// operation is invoked at most MaxRetries+1 times.
	MaxRetries int

	// InitialDelay is the wait before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the exponentially growing delay.
	MaxDelay time.Duration

	// BackoffMultiplier scales the delay between consecutive retries.
	BackoffMultiplier float64

	// Timeout bounds each individual attempt. Zero disables the
	// per-attempt deadline.
	Timeout time.Duration
}

// DefaultOptions returns the standard retry configuration.
func DefaultOptions() Options {
	return Options{
		MaxRetries:        DefaultMaxRetries,
		InitialDelay:      DefaultInitialDelay,
		MaxDelay:          DefaultMaxDelay,
		BackoffMultiplier: DefaultBackoffMultiplier,
		Timeout:           DefaultTimeout,
	}
}

// Context identifies the wrapped operation for logging.
type Context struct {
	Service string
	Method  string
	Params  map[string]any
}

// Do invokes op until it succeeds, returns a non-retryable failure, the retry
// budget is exhausted, or ctx is cancelled. Each attempt runs under its own
// timeout derived from ctx; a timed-out attempt counts as a retryable
// failure.
//
// op must be safe to invoke more than once. The returned error is always a
// *StandardizedError.
func Do[T any](ctx context.Context, logger *slog.Logger, op func(context.Context) (T, error), opts Options, call Context) (T, error) {
	var zero T
	if logger == nil {
		logger = slog.Default()
	}

	var lastErr *StandardizedError
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(opts, attempt-1)
			if hint := retryAfterHint(lastErr); hint > delay {
				delay = min(hint, opts.MaxDelay)
			}
			logger.Warn("retrying operation",
				"service", call.Service,
				"method", call.Method,
				"attempt", attempt,
				"max_retries", opts.MaxRetries,
				"delay", delay,
				"error", lastErr.Message,
				"code", lastErr.Code,
			)
			if err := sleep(ctx, delay); err != nil {
				return zero, Standardize(err)
			}
		}

		result, err := runAttempt(ctx, op, opts.Timeout)
		if err == nil {
			if attempt > 0 {
				logger.Info("operation recovered",
					"service", call.Service,
					"method", call.Method,
					"attempts", attempt+1,
				)
			}
			return result, nil
		}
		if ctx.Err() != nil {
			return zero, Standardize(ctx.Err())
		}

		lastErr = Standardize(err)
		if !lastErr.Retryable {
			logger.Error("operation failed permanently",
				"service", call.Service,
				"method", call.Method,
				"attempt", attempt+1,
				"error", lastErr.Message,
				"code", lastErr.Code,
			)
			return zero, lastErr
		}
	}

	logger.Error("operation exhausted retries",
		"service", call.Service,
		"method", call.Method,
		"attempts", opts.MaxRetries+1,
		"error", lastErr.Message,
		"code", lastErr.Code,
	)
	return zero, lastErr
}

// runAttempt executes op once under its own deadline. The attempt context is
// cancelled when the attempt returns; a slow op is abandoned by the deadline
// rather than interrupted mid-flight.
func runAttempt[T any](ctx context.Context, op func(context.Context) (T, error), timeout time.Duration) (T, error) {
	if timeout <= 0 {
		return op(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return op(attemptCtx)
}

// backoffDelay computes the exponential delay preceding retry number
// retryIndex (0-based), capped at MaxDelay.
func backoffDelay(opts Options, retryIndex int) time.Duration {
	delay := float64(opts.InitialDelay)
	for i := 0; i < retryIndex; i++ {
		delay *= opts.BackoffMultiplier
	}
	if capped := float64(opts.MaxDelay); delay > capped {
		delay = capped
	}
	return time.Duration(delay)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
