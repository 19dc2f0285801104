package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MrSnakeDoc/clashfun/internal/accelerator"
	"github.com/MrSnakeDoc/clashfun/internal/domain"
	"github.com/MrSnakeDoc/clashfun/internal/gamedetect"
	"github.com/MrSnakeDoc/clashfun/internal/logger"
)

// Sampler reports which games are running.
type Sampler interface {
	Sample(ctx context.Context) (gamedetect.Signal, error)
}

// GameSink receives game signals.
type GameSink interface {
	OnGameSignal(ctx context.Context, sig gamedetect.Signal) (*domain.Selection, error)
}

// GameWatcher samples running processes and forwards changes to selection.
type GameWatcher struct {
	detector Sampler
	sink     GameSink
	logger   logger.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once

	mu   sync.Mutex
	last string
}

func NewGameWatcher(detector Sampler, sink GameSink, log logger.Logger, interval time.Duration) *GameWatcher {
	return &GameWatcher{
		detector: detector,
		sink:     sink,
		logger:   log,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start samples once, then periodically. A zero interval disables watching.
func (gw *GameWatcher) Start(ctx context.Context) error {
	if gw.interval <= 0 {
		gw.logger.Info("game detection disabled")
		return nil
	}
	gw.Poll(ctx)
	go loop(ctx, gw.interval, gw.stopCh, nil, func(ctx context.Context, _ bool) { gw.Poll(ctx) })
	return nil
}

// Stop stops the watcher
func (gw *GameWatcher) Stop() {
	gw.stopOnce.Do(func() { close(gw.stopCh) })
}

// Poll takes one sample and forwards it when the set of games changed.
func (gw *GameWatcher) Poll(ctx context.Context) {
	sig, err := gw.detector.Sample(ctx)
	if err != nil {
		gw.logger.Warn("game detection failed", logger.Stage(domain.StageDetect), logger.Error(err))
		return
	}

	gw.mu.Lock()
	changed := sig.Key() != gw.last
	gw.last = sig.Key()
	gw.mu.Unlock()
	if !changed {
		return
	}

	if _, err := gw.sink.OnGameSignal(ctx, sig); err != nil && !errors.Is(err, accelerator.ErrNoSubscription) {
		gw.logger.Warn("reselection for running games failed",
			logger.Strings("games", sig.Games),
			logger.Error(err))
	}
}
