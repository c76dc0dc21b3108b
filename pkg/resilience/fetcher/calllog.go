package fetcher

import (
	"context"
	"sync"
	"time"

	"github.com/vnykmshr/rateshield/pkg/ratelimit/bucket"
)

// Limiter admits outbound provider calls. Satisfied by CallLog and by
// pkg/ratelimit/distributed limiters.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

// CallLog is a process-local sliding-window limiter: it keeps timestamps of
// recent calls and admits a new one while fewer than maxRequests fall inside
// the window. Unlike the token bucket it never smooths, a full window denies
// outright until the oldest call ages out.
type CallLog struct {
	maxRequests int
	window      time.Duration
	clock       bucket.Clock

	mu    sync.Mutex
	calls []time.Time
}

// NewCallLog creates a sliding-window limiter. A nil clock uses wall time.
func NewCallLog(maxRequests int, window time.Duration, clock bucket.Clock) *CallLog {
	if clock == nil {
		clock = bucket.SystemClock{}
	}
	return &CallLog{
		maxRequests: maxRequests,
		window:      window,
		clock:       clock,
	}
}

// Allow records and admits one call if the window has room. The key is
// ignored; the log governs total outbound volume.
func (l *CallLog) Allow(_ context.Context, _ string) bool {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.prune(now)
	if len(l.calls) >= l.maxRequests {
		return false
	}
	l.calls = append(l.calls, now)
	return true
}

// Size reports how many calls currently count against the window.
func (l *CallLog) Size() int {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.prune(now)
	return len(l.calls)
}

// prune drops timestamps that have aged out. Calls are appended in order,
// so the first still-inside index bounds the cut.
func (l *CallLog) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	keep := 0
	for keep < len(l.calls) && !l.calls[keep].After(cutoff) {
		keep++
	}
	if keep > 0 {
		l.calls = append(l.calls[:0], l.calls[keep:]...)
	}
}
