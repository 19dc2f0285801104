package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MrSnakeDoc/clashfun/internal/domain"
)

// Kind classifies a session error.
type Kind string

const (
	KindAlreadyRunning Kind = "already_running"
	KindNotRunning     Kind = "not_running"
	KindApplyFailed    Kind = "apply_failed"
	KindInvalidState   Kind = "invalid_state"
)

var (
	ErrAlreadyRunning = errors.New("proxy session already running")
	ErrNotRunning     = errors.New("proxy session not running")
	ErrApplyFailed    = errors.New("proxy engine rejected the configuration")
	// ErrInvalidState reports an operation called in a state that forbids it.
	ErrInvalidState = errors.New("invalid proxy session state")
)

var kindSentinels = map[Kind]error{
	KindAlreadyRunning: ErrAlreadyRunning,
	KindNotRunning:     ErrNotRunning,
	KindApplyFailed:    ErrApplyFailed,
	KindInvalidState:   ErrInvalidState,
}

// Error is returned by every failing Session operation.
type Error struct {
	AppError domain.AppError
	Kind     Kind
	Cause    error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

func newError(kind Kind, node, message string, cause error) *Error {
	return &Error{
		AppError: domain.AppError{
			Code:    "SESSION_" + strings.ToUpper(string(kind)),
			Message: message,
			Stage:   domain.StageSession,
			Node:    node,
		},
		Kind:  kind,
		Cause: cause,
	}
}
