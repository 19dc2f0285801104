package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/clashfun/internal/accelerator"
	"github.com/MrSnakeDoc/clashfun/internal/logger"
	"github.com/MrSnakeDoc/clashfun/internal/subscription"
)

// SubscriptionLoader replaces the current subscription from a source.
type SubscriptionLoader interface {
	Load(ctx context.Context, source string, hint subscription.Format) (*accelerator.Report, error)
}

// SubscriptionReloader fetches the configured subscription at start and
// then periodically. A failed fetch or parse keeps the previous subscription.
type SubscriptionReloader struct {
	acc      SubscriptionLoader
	source   string
	format   subscription.Format
	logger   logger.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewSubscriptionReloader creates a reloader for source.
func NewSubscriptionReloader(acc SubscriptionLoader, source string, format subscription.Format, log logger.Logger, interval time.Duration) *SubscriptionReloader {
	return &SubscriptionReloader{
		acc:      acc,
		source:   source,
		format:   format,
		logger:   log,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start loads the subscription once, then keeps reloading it in the background.
// The initial error is returned so the caller can decide whether to fall back
// to a cached snapshot; the loop is started either way.
func (sr *SubscriptionReloader) Start(ctx context.Context) error {
	err := sr.Reload(ctx)
	if sr.interval > 0 {
		go loop(ctx, sr.interval, sr.stopCh, nil, func(ctx context.Context, _ bool) {
			if err := sr.Reload(ctx); err != nil {
				sr.logger.Error("failed to reload subscription", logger.Error(err))
			}
		})
	}
	if err != nil {
		return fmt.Errorf("initial subscription load failed: %w", err)
	}
	return nil
}

// Stop stops the reloader
func (sr *SubscriptionReloader) Stop() {
	sr.stopOnce.Do(func() { close(sr.stopCh) })
}

// Reload fetches and installs the subscription once.
func (sr *SubscriptionReloader) Reload(ctx context.Context) error {
	sr.logger.Info("reloading subscription", logger.String(logger.KeySource, sr.source))
	rep, err := sr.acc.Load(ctx, sr.source, sr.format)
	if err != nil {
		return err
	}
	if rep.SelectionError != nil {
		sr.logger.Warn("subscription loaded but no node selected",
			logger.Int("nodes", rep.Nodes),
			logger.Error(rep.SelectionError))
	}
	return nil
}
