// Package retry provides backoff retry loops.
//
// Bounded exponential retry, as used around hardware line access:
//
//	v, err := retry.DoWithResult(ctx, retry.Quick(), func() (bool, error) {
//	    return lines.Read(17)
//	})
//
// Unbounded fixed-delay retry, as used by the client reconnect loop:
//
//	cfg := retry.Fixed(5*time.Second, retry.Unlimited)
//	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
//	    logger.Warn("reconnect failed", "attempt", attempt, "error", err, "next", delay)
//	}
//	err := retry.Do(ctx, cfg, dial)
//
// Wrap an error with NonRetryable to stop the loop immediately.
package retry
