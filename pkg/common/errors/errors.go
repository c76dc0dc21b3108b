package errors

import "errors"

// Common error types used across the rateshield library

var (
	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrRateLimited indicates that a request was denied by a rate limiter
	ErrRateLimited = errors.New("rate limited")

	// ErrCircuitOpen indicates that a circuit breaker is rejecting calls
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrUnavailable indicates that neither a fresh nor a fallback value exists
	ErrUnavailable = errors.New("value unavailable")

	// ErrInvalidValue indicates a fetched value failed its sanity range check
	ErrInvalidValue = errors.New("value outside valid range")

	// ErrInvalidConfiguration indicates invalid configuration parameters
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// IsQuotaError returns true if the error represents local throttling or an
// open circuit rather than an upstream failure. Quota errors must never count
// toward circuit breaker failure thresholds.
func IsQuotaError(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrCircuitOpen)
}
