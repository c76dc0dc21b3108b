package fetcher

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	rserrors "github.com/vnykmshr/rateshield/pkg/common/errors"
	"github.com/vnykmshr/rateshield/pkg/common/validation"
)

// RefresherConfig configures background refresh of hot keys.
type RefresherConfig struct {
	// Fetcher runs the refreshes.
	Fetcher *Fetcher

	// Keys are refreshed on every run.
	Keys []string

	// CronSpec schedules runs. Defaults to "@every 1h".
	CronSpec string

	// RunTimeout bounds one refresh run. Defaults to 1 minute.
	RunTimeout time.Duration

	// Logger receives run outcomes. If nil, the fetcher's logger is used.
	Logger *zap.Logger
}

// Refresher re-fetches a fixed key set on a cron schedule so caches stay
// warm and a provider outage is bridged by recent last-known-good values.
type Refresher struct {
	config RefresherConfig
	cron   *cron.Cron
}

// NewRefresher creates a refresher. Call Start to begin scheduling.
func NewRefresher(config RefresherConfig) (*Refresher, error) {
	if err := validation.ValidateNotNil("refresher", "Fetcher", config.Fetcher); err != nil {
		return nil, err
	}
	if len(config.Keys) == 0 {
		return nil, rserrors.NewValidationError("refresher", "Keys", config.Keys, "cannot be empty").
			WithHint("list the keys to refresh")
	}
	if config.CronSpec == "" {
		config.CronSpec = "@every 1h"
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = time.Minute
	}
	if config.Logger == nil {
		config.Logger = config.Fetcher.config.Logger
	}

	r := &Refresher{
		config: config,
		cron:   cron.New(),
	}
	if _, err := r.cron.AddFunc(config.CronSpec, r.run); err != nil {
		return nil, err
	}
	return r, nil
}

// Start begins scheduled refreshes.
func (r *Refresher) Start() {
	r.cron.Start()
}

// Stop halts scheduling and waits for a running refresh to finish.
func (r *Refresher) Stop() {
	<-r.cron.Stop().Done()
}

// Run performs one refresh immediately, outside the schedule.
func (r *Refresher) Run(ctx context.Context) {
	r.refresh(ctx)
}

func (r *Refresher) run() {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.RunTimeout)
	defer cancel()
	r.refresh(ctx)
}

func (r *Refresher) refresh(ctx context.Context) {
	fetcher := r.config.Fetcher
	quotes, err := fetcher.FetchValues(ctx, r.config.Keys)

	stale := 0
	for _, quote := range quotes {
		if quote.Stale {
			stale++
		}
	}
	if err != nil {
		r.config.Logger.Warn("background refresh incomplete",
			zap.Int("keys", len(r.config.Keys)),
			zap.Int("refreshed", len(quotes)),
			zap.Error(err))
	} else {
		r.config.Logger.Info("background refresh complete",
			zap.Int("keys", len(r.config.Keys)),
			zap.Int("stale", stale))
	}

	if fetcher.registry != nil {
		fetcher.registry.RefreshRuns.WithLabelValues(fetcher.config.Name).Inc()
	}
}
