package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/clashfun/internal/logger"
)

// DefaultCollectInterval is how often stale probe histories are swept.
const DefaultCollectInterval = time.Hour

// HistoryStore lists and deletes per-node probe histories by history id.
type HistoryStore interface {
	HistoryIDs(ctx context.Context) ([]string, error)
	DeleteHistory(ctx context.Context, id string) error
}

// NodeSet reports which node identities the current subscription holds.
type NodeSet interface {
	HasHistoryID(id string) bool
}

// HistoryCollector removes probe histories of nodes that are no longer part
// of the current subscription.
type HistoryCollector struct {
	store    HistoryStore
	nodes    NodeSet
	logger   logger.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewHistoryCollector(store HistoryStore, nodes NodeSet, log logger.Logger, interval time.Duration) *HistoryCollector {
	if interval <= 0 {
		interval = DefaultCollectInterval
	}
	return &HistoryCollector{
		store:    store,
		nodes:    nodes,
		logger:   log,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic collection process
func (hc *HistoryCollector) Start(ctx context.Context) error {
	go loop(ctx, hc.interval, hc.stopCh, nil, func(ctx context.Context, _ bool) {
		if _, err := hc.Collect(ctx); err != nil {
			hc.logger.Error("history collection failed", logger.Error(err))
		}
	})
	return nil
}

// Stop stops the collector
func (hc *HistoryCollector) Stop() {
	hc.stopOnce.Do(func() { close(hc.stopCh) })
}

// Collect deletes histories of unknown nodes and returns how many were removed.
func (hc *HistoryCollector) Collect(ctx context.Context) (int, error) {
	ids, err := hc.store.HistoryIDs(ctx)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, id := range ids {
		if hc.nodes.HasHistoryID(id) {
			continue
		}
		if err := hc.store.DeleteHistory(ctx, id); err != nil {
			hc.logger.Warn("failed to delete probe history", logger.String("history_id", id), logger.Error(err))
			continue
		}
		deleted++
	}

	if deleted > 0 {
		hc.logger.Info("history collection completed", logger.Int("deleted", deleted))
	} else {
		hc.logger.Debug("no probe history to collect")
	}
	return deleted, nil
}
