package scheduler

import (
	"context"

	"github.com/MrSnakeDoc/clashfun/internal/accelerator"
	"github.com/MrSnakeDoc/clashfun/internal/domain"
	"github.com/MrSnakeDoc/clashfun/internal/logger"
)

// SnapshotSource reads cached state.
type SnapshotSource interface {
	LoadSubscription(ctx context.Context) (*domain.SubscriptionSnapshot, error)
	LoadSelection(ctx context.Context) (*domain.SelectionRecord, error)
}

// Restorer re-installs a cached subscription.
type Restorer interface {
	Restore(ctx context.Context, snap *domain.SubscriptionSnapshot, rec *domain.SelectionRecord) (*accelerator.Report, error)
}

// SnapshotRestorer restores the last subscription from Redis on startup
type SnapshotRestorer struct {
	store  SnapshotSource
	acc    Restorer
	logger logger.Logger
}

func NewSnapshotRestorer(store SnapshotSource, acc Restorer, log logger.Logger) *SnapshotRestorer {
	return &SnapshotRestorer{store: store, acc: acc, logger: log}
}

// Restore loads the cached subscription and selection hint. It reports
// whether a subscription was installed.
func (sr *SnapshotRestorer) Restore(ctx context.Context) (bool, error) {
	sr.logger.Info("restoring subscription from redis")

	snap, err := sr.store.LoadSubscription(ctx)
	if err != nil {
		return false, err
	}
	if snap == nil {
		sr.logger.Info("no cached subscription found in redis")
		return false, nil
	}

	rec, err := sr.store.LoadSelection(ctx)
	if err != nil {
		sr.logger.Warn("failed to read cached selection", logger.Error(err))
		rec = nil
	}

	rep, err := sr.acc.Restore(ctx, snap, rec)
	if err != nil {
		return false, err
	}
	sr.logger.Info("restored subscription from redis",
		logger.String(logger.KeySource, snap.Source),
		logger.Int("nodes", rep.Nodes),
		logger.Node(rep.Selection.Name()))
	return true, nil
}
