package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MrSnakeDoc/clashfun/internal/accelerator"
	"github.com/MrSnakeDoc/clashfun/internal/domain"
	"github.com/MrSnakeDoc/clashfun/internal/logger"
)

// Refresher runs one health-refresh cycle.
type Refresher interface {
	Refresh(ctx context.Context) (*domain.Selection, error)
}

// HealthRefresher re-probes the current subscription periodically and on
// demand. At most one manual refresh is queued at a time.
type HealthRefresher struct {
	acc      Refresher
	logger   logger.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	trigger  chan struct{}
}

// NewHealthRefresher creates a refresher. interval <= 0 disables the timer;
// manual triggers still work.
func NewHealthRefresher(acc Refresher, log logger.Logger, interval time.Duration) *HealthRefresher {
	return &HealthRefresher{
		acc:      acc,
		logger:   log,
		interval: interval,
		stopCh:   make(chan struct{}),
		trigger:  make(chan struct{}, 1),
	}
}

// Start begins the refresh loop in the background.
func (hr *HealthRefresher) Start(ctx context.Context) error {
	go loop(ctx, hr.interval, hr.stopCh, hr.trigger, hr.run)
	return nil
}

// Stop stops the refresher
func (hr *HealthRefresher) Stop() {
	hr.stopOnce.Do(func() { close(hr.stopCh) })
}

// Trigger queues a refresh. It returns false when one is already queued.
func (hr *HealthRefresher) Trigger() bool {
	select {
	case hr.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

func (hr *HealthRefresher) run(ctx context.Context, manual bool) {
	if manual {
		hr.logger.Info("manual refresh triggered")
	}
	sel, err := hr.acc.Refresh(ctx)
	switch {
	case errors.Is(err, accelerator.ErrNoSubscription):
		hr.logger.Debug("refresh skipped, no subscription loaded")
	case errors.Is(err, context.Canceled):
		hr.logger.Debug("refresh cancelled")
	case err != nil:
		hr.logger.Warn("health refresh failed", logger.Error(err))
	default:
		hr.logger.Debug("health refresh completed", logger.Node(sel.Name()), logger.Duration("latency", sel.Latency()))
	}
}
