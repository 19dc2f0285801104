package gamedetect

import "context"

// ProcessLister samples the names of the processes currently running.
// Implementations return both short process names and, where the
// platform exposes them, executable paths.
type ProcessLister interface {
	ListRunningProcessNames(ctx context.Context) (map[string]struct{}, error)
}

// ListerFunc adapts a function to ProcessLister.
type ListerFunc func(ctx context.Context) (map[string]struct{}, error)

func (f ListerFunc) ListRunningProcessNames(ctx context.Context) (map[string]struct{}, error) {
	return f(ctx)
}
