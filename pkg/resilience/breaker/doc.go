// Package breaker implements a failure-count circuit breaker.
//
// The breaker has two states. CLOSED is normal operation; consecutive
// failures accumulate and at FailureThreshold the breaker opens. OPEN lasts
// for Cooldown, during which callers should skip the protected call and use
// fallback data. There is no half-open probe state: once the cooldown
// elapses the breaker closes fully and the next call is a normal attempt.
//
// The OPEN to CLOSED transition happens lazily inside IsOpen, so a breaker
// that is never consulted never transitions. RecordSuccess resets the
// failure count and closes an open breaker immediately.
//
//	b, _ := breaker.New(breaker.Config{FailureThreshold: 5, Cooldown: 5 * time.Minute})
//
//	if b.IsOpen() {
//		return lastKnownGood()
//	}
//	if err := call(); err != nil {
//		b.RecordFailure()
//		return lastKnownGood()
//	}
//	b.RecordSuccess()
//
// A breaker protects a flaky upstream from sustained retry pressure and
// gives callers a fast "use fallback" signal instead of paying the full
// retry-timeout cost on every call while the provider is known-bad.
package breaker
