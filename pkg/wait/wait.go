// Package wait polls a condition until it holds, backing off between
// attempts.
package wait

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/cloudigrade/integrade/pkg/log"
)

var ErrTimeout = errors.New("timed out waiting for condition")

var errNotReady = errors.New("condition not met")

// Config bounds a wait.
type Config struct {
	// Timeout is the total time allowed for the condition to hold.
	Timeout time.Duration
	// InitialInterval is the delay after the first failed check.
	InitialInterval time.Duration
	// MaxInterval caps the delay between checks.
	MaxInterval time.Duration
}

// DefaultConfig waits up to timeout, checking often at first.
func DefaultConfig(timeout time.Duration) Config {
	return Config{
		Timeout:         timeout,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
	}
}

// Condition reports whether the awaited state has been reached. A non-nil
// error stops the wait immediately.
type Condition func(ctx context.Context) (bool, error)

// Until checks cond until it returns true, it returns an error, the timeout
// elapses (ErrTimeout) or ctx is done (ctx.Err()).
func Until(ctx context.Context, cfg Config, what string, cond Condition) error {
	b := backoff.NewExponentialBackOff()
	if cfg.InitialInterval > 0 {
		b.InitialInterval = cfg.InitialInterval
	}
	if cfg.MaxInterval > 0 {
		b.MaxInterval = cfg.MaxInterval
	}
	b.MaxElapsedTime = cfg.Timeout

	attempts := 0
	op := func() error {
		attempts++
		done, err := cond(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !done {
			return errNotReady
		}
		return nil
	}
	notify := func(err error, next time.Duration) {
		log.Tracef("waiting for %s: attempt %d, next check in %s", what, attempts, next)
	}

	err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify)
	switch {
	case err == nil:
		if attempts > 1 {
			log.Debugf("%s after %d attempts", what, attempts)
		}
		return nil
	case errors.Is(err, errNotReady):
		return fmt.Errorf("%w: %s after %s", ErrTimeout, what, cfg.Timeout)
	default:
		return err
	}
}

// Value polls get until accept approves its result and returns that result.
// On failure the last value seen is returned with the error.
func Value[T any](ctx context.Context, cfg Config, what string, get func(ctx context.Context) (T, error), accept func(T) bool) (T, error) {
	var last T
	err := Until(ctx, cfg, what, func(ctx context.Context) (bool, error) {
		v, err := get(ctx)
		if err != nil {
			return false, err
		}
		last = v
		return accept(v), nil
	})
	return last, err
}
