package domain

// SessionState is the proxy session lifecycle state.
type SessionState string

const (
	SessionStopped  SessionState = "stopped"
	SessionStarting SessionState = "starting"
	SessionRunning  SessionState = "running"
	SessionStopping SessionState = "stopping"
	SessionFailed   SessionState = "failed"
)

// SessionStatus is an immutable view of the session.
// Active is non-nil exactly when State is SessionRunning.
type SessionStatus struct {
	State  SessionState
	Active *Selection
	Err    error
}
