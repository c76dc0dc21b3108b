package retry

import (
	"context"
	"errors"
	"net"
	"time"

	"go.uber.org/zap"

	rserrors "github.com/vnykmshr/rateshield/pkg/common/errors"
	"github.com/vnykmshr/rateshield/pkg/common/validation"
)

// Backoff computes jitter-free exponential delays: Base doubling per retry,
// capped at Cap.
type Backoff struct {
	Base time.Duration
	Cap  time.Duration
}

// DefaultBackoff matches the engine defaults: 1s, 2s, 4s... capped at 10s.
func DefaultBackoff() Backoff {
	return Backoff{Base: time.Second, Cap: 10 * time.Second}
}

// Delay returns the wait before retry number retryIndex (0-based, i.e. the
// delay between the first and second attempt is Delay(0)).
func (b Backoff) Delay(retryIndex int) time.Duration {
	if retryIndex < 0 {
		retryIndex = 0
	}
	delay := b.Base
	for i := 0; i < retryIndex; i++ {
		delay *= 2
		if delay >= b.Cap {
			return b.Cap
		}
	}
	if delay > b.Cap {
		return b.Cap
	}
	return delay
}

// TransientError marks an error as retryable.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err so IsTransient reports true for it.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err might be resolved by retrying: an explicit
// Transient mark, a network timeout, a connection-level failure, or an
// attempt that ran out of time.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var oe *net.OpError
	if errors.As(err, &oe) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, rserrors.ErrTimeout)
}

// Config holds retry configuration.
type Config struct {
	// MaxAttempts is the total number of attempts. Defaults to 3.
	MaxAttempts int

	// Backoff is the delay schedule between attempts.
	Backoff Backoff

	// PerAttemptTimeout bounds each attempt. Defaults to 10 seconds;
	// negative disables the per-attempt timeout.
	PerAttemptTimeout time.Duration

	// Logger receives per-attempt failures at Debug. If nil, logging is off.
	Logger *zap.Logger

	// Sleep waits between attempts. Injectable for tests; the default
	// honors context cancellation.
	Sleep func(ctx context.Context, d time.Duration) error

	// OnAttempt is invoked before each attempt, for instrumentation.
	OnAttempt func(attempt int)
}

func (c Config) withDefaults() (Config, error) {
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if err := validation.ValidatePositive("retry", "maxAttempts", c.MaxAttempts); err != nil {
		return c, err
	}
	if c.Backoff == (Backoff{}) {
		c.Backoff = DefaultBackoff()
	}
	if c.PerAttemptTimeout == 0 {
		c.PerAttemptTimeout = 10 * time.Second
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Sleep == nil {
		c.Sleep = sleepContext
	}
	return c, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do runs fn until it succeeds, a non-transient error occurs, attempts are
// exhausted, or ctx is done. It returns nil on success and the last attempt
// error otherwise.
func Do(ctx context.Context, config Config, fn func(ctx context.Context) error) error {
	config, err := config.withDefaults()
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := config.Sleep(ctx, config.Backoff.Delay(attempt-2)); err != nil {
				return lastErr
			}
		}
		if config.OnAttempt != nil {
			config.OnAttempt(attempt)
		}

		attemptCtx := ctx
		cancel := context.CancelFunc(func() {})
		if config.PerAttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, config.PerAttemptTimeout)
		}
		err := fn(attemptCtx)
		cancel()

		if err == nil {
			return nil
		}
		lastErr = err

		if !IsTransient(err) {
			config.Logger.Debug("attempt failed with permanent error, giving up",
				zap.Int("attempt", attempt), zap.Error(err))
			return lastErr
		}
		if ctx.Err() != nil {
			// Caller deadline exceeded; remaining attempts are aborted.
			return lastErr
		}
		config.Logger.Debug("attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", config.MaxAttempts),
			zap.Error(err))
	}
	return lastErr
}
