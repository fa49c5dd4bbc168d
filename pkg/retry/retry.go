// Package retry runs an operation until it succeeds, with exponential or
// fixed backoff between attempts. Bounded configs suit hardware and startup
// work; Unlimited suits client reconnection, where only the context ends it.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// Unlimited as MaxAttempts keeps retrying until the context is done.
const Unlimited = -1

// NonRetryableError stops Do at the attempt that returned it.
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string { return "non-retryable: " + e.Err.Error() }

func (e *NonRetryableError) Unwrap() error { return e.Err }

// NonRetryable marks err so Do returns it without another attempt.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetryableError{Err: err}
}

// IsNonRetryable reports whether err carries a NonRetryable mark.
func IsNonRetryable(err error) bool {
	var nre *NonRetryableError
	return errors.As(err, &nre)
}

// Config controls the attempts and the waits between them. The zero value
// runs the operation once.
type Config struct {
	MaxAttempts  int           // 0 runs once; Unlimited never gives up
	InitialDelay time.Duration // wait before the second attempt, 100ms if zero
	MaxDelay     time.Duration // cap on any wait, 5s if zero
	Multiplier   float64       // growth per attempt, 2 if zero; 1 keeps it fixed
	Jitter       float64       // extra random fraction of each wait, 0 to 1

	// OnRetry runs after a failed attempt that will be retried, with the
	// wait about to start.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Fixed waits delay between attempts. maxAttempts of 0 means Unlimited.
func Fixed(delay time.Duration, maxAttempts int) Config {
	if maxAttempts == 0 {
		maxAttempts = Unlimited
	}
	return Config{MaxAttempts: maxAttempts, InitialDelay: delay, MaxDelay: delay, Multiplier: 1}
}

// Quick is five attempts from 5ms up to 100ms, for GPIO line access.
func Quick() Config {
	return Config{
		MaxAttempts:  5,
		InitialDelay: 5 * time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
		Multiplier:   2,
		Jitter:       0.25,
	}
}

func (c Config) withDefaults() (Config, error) {
	switch {
	case c.InitialDelay < 0, c.MaxDelay < 0:
		return c, errors.New("retry: delays cannot be negative")
	case c.Multiplier < 0:
		return c, errors.New("retry: multiplier cannot be negative")
	case c.Jitter < 0 || c.Jitter > 1:
		return c, errors.New("retry: jitter must be between 0 and 1")
	}

	if c.MaxAttempts == 0 {
		c.MaxAttempts = 1
	}
	if c.InitialDelay == 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = 5 * time.Second
	}
	if c.Multiplier == 0 {
		c.Multiplier = 2
	}
	if c.MaxDelay < c.InitialDelay {
		return c, errors.New("retry: MaxDelay must be >= InitialDelay")
	}
	return c, nil
}

// wait returns the pause after the given failed attempt, starting at 1.
func (c Config) wait(attempt int) time.Duration {
	d := float64(c.InitialDelay)
	for i := 1; i < attempt && d < float64(c.MaxDelay); i++ {
		d *= c.Multiplier
	}
	d = min(d, float64(c.MaxDelay))
	if c.Jitter > 0 {
		d += d * c.Jitter * rand.Float64()
	}
	return time.Duration(d)
}

// Do calls fn until it returns nil or a NonRetryable error, the attempts
// run out, or ctx is done. Exhaustion wraps the last error.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return err
	}

	for attempt := 1; ; attempt++ {
		err := fn()
		switch {
		case err == nil:
			return nil
		case IsNonRetryable(err):
			return err
		case ctx.Err() != nil:
			return fmt.Errorf("retry cancelled after attempt %d: %w", attempt, ctx.Err())
		case cfg.MaxAttempts != Unlimited && attempt >= cfg.MaxAttempts:
			return fmt.Errorf("retry failed after %d attempts: %w", attempt, err)
		}

		delay := cfg.wait(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled waiting for attempt %d: %w", attempt+1, ctx.Err())
		case <-timer.C:
		}
	}
}

// DoWithResult is Do for operations that produce a value. The value of the
// last attempt is returned alongside its error.
func DoWithResult[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var v T
	err := Do(ctx, cfg, func() error {
		var err error
		v, err = fn()
		return err
	})
	return v, err
}
