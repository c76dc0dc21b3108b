// Package bucket implements the token bucket arithmetic for one rate-limited
// key. It performs no I/O and holds no shared state; callers load a State
// from their store, apply Take or Remaining, and persist the result.
//
// A bucket holds at most MaxTokens tokens and refills RefillRate tokens per
// Window, computed in whole tokens from the elapsed time since the last
// refill. New buckets start full so the first caller on a key is never
// penalized.
//
// The arithmetic is deliberately separated from storage: the distributed
// package applies the identical computation inside a Redis Lua script, and
// this package is the reference for what that script must do.
package bucket
