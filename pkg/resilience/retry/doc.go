// Package retry provides a small retry helper with jitter-free exponential
// backoff and an injectable clock, used by the fetcher for upstream calls.
//
// Only transient failures are retried: connection errors, timeouts, and
// errors explicitly marked with Transient. Semantic failures such as a
// malformed response abort the loop immediately; retrying them would just
// repeat the same answer.
//
//	err := retry.Do(ctx, retry.Config{
//		MaxAttempts: 3,
//		Backoff:     retry.Backoff{Base: time.Second, Cap: 10 * time.Second},
//	}, func(ctx context.Context) error {
//		return callUpstream(ctx)
//	})
//
// Each attempt runs under its own timeout; a caller deadline on ctx aborts
// remaining attempts and backoff waits.
package retry
