package resilience

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"
)

// RetryConfig tunes [Retry]'s exponential backoff.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Default: 3.
	MaxAttempts int

	// BaseDelay is the delay before the second attempt. Default: 250ms.
	BaseDelay time.Duration

	// MaxDelay caps the backoff delay. Default: 5s.
	MaxDelay time.Duration
}

// Retry runs fn, retrying with exponential backoff and jitter on error.
// It stops early and returns the error unchanged when err was wrapped with
// [Permanent] — callers should wrap non-retryable errors with [Permanent] so
// the stage fails fast instead of burning retry budget — and returns
// ctx.Err() when ctx is cancelled during a backoff wait.
func Retry(ctx context.Context, cfg RetryConfig, name string, fn func(ctx context.Context) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 250 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 5 * time.Second
	}

	var lastErr error
	delay := cfg.BaseDelay
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		var perm *permanentError
		if errors.As(err, &perm) {
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		jittered := delay/2 + time.Duration(rand.Int63n(int64(delay)+1))
		if jittered > cfg.MaxDelay {
			jittered = cfg.MaxDelay
		}
		slog.Warn("retrying after transient failure",
			"name", name, "attempt", attempt, "err", err, "delay", jittered)

		select {
		case <-time.After(jittered):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return lastErr
}

// permanentError marks an error as non-retryable.
type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps err so [Retry] stops immediately instead of retrying it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}
