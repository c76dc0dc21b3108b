package bucket

import (
	"math"
	"time"

	"github.com/vnykmshr/rateshield/pkg/common/validation"
)

// Config describes one bucket family: capacity and refill schedule.
type Config struct {
	// MaxTokens is the bucket capacity. Zero means every check is denied.
	MaxTokens int

	// RefillRate is the number of tokens added per Window.
	RefillRate float64

	// Window is the refill period.
	Window time.Duration
}

// Validate checks the configuration parameters.
func (c Config) Validate() error {
	if c.MaxTokens < 0 {
		return validation.ValidateNonNegative("bucket", "maxTokens", float64(c.MaxTokens))
	}
	if err := validation.ValidateNonNegative("bucket", "refillRate", c.RefillRate); err != nil {
		return err
	}
	return validation.ValidatePositiveDuration("bucket", "window", c.Window)
}

// RecordTTL is how long a persisted bucket record should live when unused.
// Expiry bounds storage; an expired record is indistinguishable from a fresh
// full bucket.
func (c Config) RecordTTL() time.Duration {
	return 2 * c.Window
}

// State is the persisted record for one key.
type State struct {
	Tokens     float64
	LastRefill time.Time
}

// NewState returns the state of a bucket seen for the first time at now.
// New buckets start full.
func NewState(c Config, now time.Time) State {
	return State{Tokens: float64(c.MaxTokens), LastRefill: now}
}

// refill computes the token count at now without mutating s. Tokens accrue
// in whole units: floor(elapsed * refillRate / window), capped at MaxTokens.
func refill(c Config, s State, now time.Time) float64 {
	elapsed := now.Sub(s.LastRefill)
	if elapsed < 0 {
		elapsed = 0
	}
	added := math.Floor(elapsed.Seconds() * c.RefillRate / c.Window.Seconds())
	return math.Min(float64(c.MaxTokens), s.Tokens+added)
}

// Take refills s to now and consumes one token when at least one is
// available. It returns the state to persist and whether the request was
// admitted. The refill clock advances to now in both branches so a denied
// bucket still makes progress toward its next token.
func Take(c Config, s State, now time.Time) (State, bool) {
	tokens := refill(c, s, now)
	allowed := tokens >= 1
	if allowed {
		tokens--
	}
	return State{Tokens: tokens, LastRefill: now}, allowed
}

// Remaining returns the whole tokens available at now. It consumes nothing
// and the caller must not persist anything; this is the read-only companion
// to Take used for informational rate limit headers.
func Remaining(c Config, s State, now time.Time) int {
	return int(refill(c, s, now))
}

// Clock provides the current time. It can be mocked for testing.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using the system time.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}
