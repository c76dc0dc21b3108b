package breaker

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vnykmshr/rateshield/pkg/common/validation"
	"github.com/vnykmshr/rateshield/pkg/metrics"
)

// Clock provides the current time. It can be mocked for testing.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Config holds circuit breaker configuration.
type Config struct {
	// FailureThreshold is the consecutive failure count that opens the
	// breaker. Defaults to 5.
	FailureThreshold int

	// Cooldown is how long the breaker stays open. Defaults to 5 minutes.
	Cooldown time.Duration

	// Name labels this breaker in logs and metrics.
	Name string

	// Clock provides the current time. If nil, the system clock is used.
	Clock Clock

	// Logger receives transition events. If nil, logging is off.
	Logger *zap.Logger

	// Metrics controls Prometheus instrumentation.
	Metrics metrics.Config
}

// Breaker is a process-local circuit breaker. It is safe for concurrent use.
type Breaker struct {
	config   Config
	registry *metrics.Registry

	mu                  sync.Mutex
	consecutiveFailures int
	openUntil           time.Time // zero while closed
}

// Snapshot is a point-in-time view of breaker state for the admin surface.
type Snapshot struct {
	ConsecutiveFailures int
	Open                bool
	OpenUntil           time.Time
}

// New creates a circuit breaker. Zero-value threshold and cooldown take
// their defaults; negative values are rejected.
func New(config Config) (*Breaker, error) {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5
	}
	if config.Cooldown == 0 {
		config.Cooldown = 5 * time.Minute
	}
	if err := validation.ValidatePositive("breaker", "failureThreshold", config.FailureThreshold); err != nil {
		return nil, err
	}
	if err := validation.ValidatePositiveDuration("breaker", "cooldown", config.Cooldown); err != nil {
		return nil, err
	}
	if config.Name == "" {
		config.Name = "default"
	}
	if config.Clock == nil {
		config.Clock = systemClock{}
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	return &Breaker{
		config:   config,
		registry: config.Metrics.Resolve(),
	}, nil
}

// RecordSuccess resets the failure count and closes an open breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	wasOpen := !b.openUntil.IsZero()
	b.consecutiveFailures = 0
	b.openUntil = time.Time{}
	b.mu.Unlock()

	if wasOpen {
		b.config.Logger.Info("circuit breaker closed after success",
			zap.String("breaker", b.config.Name))
		b.transitionMetric("closed")
	}
	b.gauges(0, false)
}

// RecordFailure increments the consecutive failure count and opens the
// breaker once the threshold is reached.
func (b *Breaker) RecordFailure() {
	now := b.config.Clock.Now()

	b.mu.Lock()
	b.consecutiveFailures++
	failures := b.consecutiveFailures
	opened := false
	if failures >= b.config.FailureThreshold {
		opened = b.openUntil.IsZero()
		b.openUntil = now.Add(b.config.Cooldown)
	}
	until := b.openUntil
	b.mu.Unlock()

	if opened {
		b.config.Logger.Warn("circuit breaker opened",
			zap.String("breaker", b.config.Name),
			zap.Int("consecutive_failures", failures),
			zap.Time("open_until", until))
		b.transitionMetric("open")
	}
	b.gauges(failures, !until.IsZero())
}

// IsOpen returns the live breaker state. The auto-reset after cooldown
// happens here as a side effect; calling IsOpen is the only way the breaker
// transitions from open back to closed on its own.
func (b *Breaker) IsOpen() bool {
	now := b.config.Clock.Now()

	b.mu.Lock()
	open := !b.openUntil.IsZero()
	expired := open && !now.Before(b.openUntil)
	if expired {
		b.openUntil = time.Time{}
		b.consecutiveFailures = 0
		open = false
	}
	b.mu.Unlock()

	if expired {
		b.config.Logger.Info("circuit breaker cooldown elapsed, closing",
			zap.String("breaker", b.config.Name))
		b.transitionMetric("closed")
		b.gauges(0, false)
	}
	return open
}

// Snapshot reports current state without triggering the auto-reset.
func (b *Breaker) Snapshot() Snapshot {
	now := b.config.Clock.Now()

	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		ConsecutiveFailures: b.consecutiveFailures,
		Open:                !b.openUntil.IsZero() && now.Before(b.openUntil),
		OpenUntil:           b.openUntil,
	}
}

func (b *Breaker) transitionMetric(state string) {
	if b.registry != nil {
		b.registry.BreakerTransitions.WithLabelValues(b.config.Name, state).Inc()
	}
}

func (b *Breaker) gauges(failures int, open bool) {
	if b.registry == nil {
		return
	}
	b.registry.BreakerFailures.WithLabelValues(b.config.Name).Set(float64(failures))
	openVal := 0.0
	if open {
		openVal = 1
	}
	b.registry.BreakerOpen.WithLabelValues(b.config.Name).Set(openVal)
}
