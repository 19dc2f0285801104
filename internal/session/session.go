package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/clashfun/internal/domain"
	"github.com/MrSnakeDoc/clashfun/internal/logger"
)

// DefaultApplyTimeout bounds every engine call made by a transition.
const DefaultApplyTimeout = 10 * time.Second

// Engine is the external proxy process the session drives.
type Engine interface {
	// Apply writes the runtime configuration for node without making it live.
	Apply(ctx context.Context, node *domain.Node) error
	// Start launches the engine with the applied configuration.
	Start(ctx context.Context) error
	// Reload makes the applied configuration live on a running engine.
	Reload(ctx context.Context) error
	// Stop terminates the engine and releases its resources.
	// Stopping an engine that is not running is not an error.
	Stop(ctx context.Context) error
	// Check reports whether the engine is still serving.
	Check(ctx context.Context) error
}

// Session owns the proxy engine lifecycle.
//
// Transitions are serialized; Status is a lock-protected read that never
// waits for an in-flight transition or touches the network.
type Session struct {
	engine       Engine
	log          logger.Logger
	applyTimeout time.Duration

	op sync.Mutex

	mu     sync.RWMutex
	status domain.SessionStatus
}

func New(engine Engine, log logger.Logger, applyTimeout time.Duration) *Session {
	if applyTimeout <= 0 {
		applyTimeout = DefaultApplyTimeout
	}
	return &Session{
		engine:       engine,
		log:          log.With(logger.Component("session")),
		applyTimeout: applyTimeout,
		status:       domain.SessionStatus{State: domain.SessionStopped},
	}
}

// Status returns the current state and, when running, the active selection.
func (s *Session) Status() domain.SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Session) set(st domain.SessionStatus) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}

// Start applies sel and launches the engine. Allowed from Stopped and Failed.
func (s *Session) Start(ctx context.Context, sel *domain.Selection) error {
	s.op.Lock()
	defer s.op.Unlock()

	cur := s.Status()
	switch cur.State {
	case domain.SessionRunning, domain.SessionStarting:
		return newError(KindAlreadyRunning, cur.Active.Name(), "proxy session is already running", nil)
	case domain.SessionStopping:
		return newError(KindInvalidState, "", "start called while stopping", nil)
	}
	if sel == nil || sel.Node == nil {
		return newError(KindInvalidState, "", "start requires a selection", nil)
	}

	s.set(domain.SessionStatus{State: domain.SessionStarting})

	opCtx, cancel := context.WithTimeout(ctx, s.applyTimeout)
	defer cancel()

	// A failed switch or health check can leave the old process alive.
	if cur.State == domain.SessionFailed {
		if err := s.engine.Stop(opCtx); err != nil {
			return s.fail(sel.Node.Name, "cannot stop failed proxy engine", err)
		}
	}
	if err := s.engine.Apply(opCtx, sel.Node); err != nil {
		return s.fail(sel.Node.Name, "cannot apply node configuration", err)
	}
	if err := s.engine.Start(opCtx); err != nil {
		return s.fail(sel.Node.Name, "proxy engine failed to start", err)
	}

	s.set(domain.SessionStatus{State: domain.SessionRunning, Active: sel})
	s.log.Info("proxy session started",
		logger.Node(sel.Node.Name),
		logger.Duration("latency", sel.Latency()),
		logger.String(logger.KeyTrigger, string(sel.Trigger)),
	)
	return nil
}

// Stop terminates the engine. Allowed from Running and Failed.
func (s *Session) Stop(ctx context.Context) error {
	s.op.Lock()
	defer s.op.Unlock()

	cur := s.Status()
	switch cur.State {
	case domain.SessionStopped:
		return newError(KindNotRunning, "", "proxy session is not running", nil)
	case domain.SessionStarting, domain.SessionStopping:
		return newError(KindInvalidState, "", fmt.Sprintf("stop called while %s", cur.State), nil)
	}

	s.set(domain.SessionStatus{State: domain.SessionStopping})

	opCtx, cancel := context.WithTimeout(ctx, s.applyTimeout)
	defer cancel()

	if err := s.engine.Stop(opCtx); err != nil {
		return s.fail(cur.Active.Name(), "proxy engine failed to stop", err)
	}

	s.set(domain.SessionStatus{State: domain.SessionStopped})
	s.log.Info("proxy session stopped", logger.Node(cur.Active.Name()))
	return nil
}

// Switch moves a running session to sel. The previous selection stays
// reported as active until the engine confirms the new one, so observers
// never see the session stopped mid-switch. On failure the previous
// selection is restored; if that also fails the session becomes Failed.
func (s *Session) Switch(ctx context.Context, sel *domain.Selection) error {
	s.op.Lock()
	defer s.op.Unlock()

	cur := s.Status()
	switch cur.State {
	case domain.SessionRunning:
	case domain.SessionStopped, domain.SessionFailed:
		return newError(KindNotRunning, sel.Name(), "switch requires a running session", nil)
	default:
		return newError(KindInvalidState, sel.Name(), fmt.Sprintf("switch called while %s", cur.State), nil)
	}
	if sel == nil || sel.Node == nil {
		return newError(KindInvalidState, "", "switch requires a selection", nil)
	}

	prev := cur.Active
	if prev.Node == sel.Node {
		s.set(domain.SessionStatus{State: domain.SessionRunning, Active: sel})
		return nil
	}

	opCtx, cancel := context.WithTimeout(ctx, s.applyTimeout)
	defer cancel()

	err := s.engine.Apply(opCtx, sel.Node)
	if err == nil {
		err = s.engine.Reload(opCtx)
	}
	if err == nil {
		s.set(domain.SessionStatus{State: domain.SessionRunning, Active: sel})
		s.log.Info("proxy session switched",
			logger.String("from", prev.Name()),
			logger.Node(sel.Node.Name),
			logger.Duration("latency", sel.Latency()),
			logger.String(logger.KeyTrigger, string(sel.Trigger)),
		)
		return nil
	}

	s.log.Warn("switch failed, restoring previous node",
		logger.Node(sel.Node.Name),
		logger.String("previous", prev.Name()),
		logger.Error(err),
	)

	// The original ctx may be exhausted; recovery gets its own budget.
	recoverCtx, cancelRecover := context.WithTimeout(context.WithoutCancel(ctx), s.applyTimeout)
	defer cancelRecover()

	rerr := s.engine.Apply(recoverCtx, prev.Node)
	if rerr == nil {
		rerr = s.engine.Reload(recoverCtx)
	}
	if rerr != nil {
		return s.fail(sel.Node.Name, "switch failed and previous node could not be restored", fmt.Errorf("%w; restore: %v", err, rerr))
	}
	return newError(KindApplyFailed, sel.Node.Name, "switch failed, previous node restored", err)
}

// Verify asks the engine whether it is still alive and marks the session
// Failed when a running engine has gone away.
func (s *Session) Verify(ctx context.Context) error {
	s.op.Lock()
	defer s.op.Unlock()

	cur := s.Status()
	if cur.State != domain.SessionRunning {
		return nil
	}
	opCtx, cancel := context.WithTimeout(ctx, s.applyTimeout)
	defer cancel()
	if err := s.engine.Check(opCtx); err != nil {
		return s.fail(cur.Active.Name(), "proxy engine stopped responding", err)
	}
	return nil
}

func (s *Session) fail(node, message string, cause error) error {
	err := newError(KindApplyFailed, node, message, cause)
	s.set(domain.SessionStatus{State: domain.SessionFailed, Err: err})
	s.log.Error(message, logger.Node(node), logger.Stage(domain.StageSession), logger.Error(cause))
	return err
}
