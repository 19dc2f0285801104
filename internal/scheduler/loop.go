package scheduler

import (
	"context"
	"time"
)

// loop calls fn on every tick and on every manual trigger until stopCh is
// closed or ctx is done. A nil trigger channel is never selected.
func loop(ctx context.Context, interval time.Duration, stopCh <-chan struct{}, trigger <-chan struct{}, fn func(ctx context.Context, manual bool)) {
	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-tick:
			fn(ctx, false)
		case <-trigger:
			fn(ctx, true)
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}
