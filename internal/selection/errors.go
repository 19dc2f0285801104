package selection

import (
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/clashfun/internal/domain"
)

// Reason tells apart the ways a selection can find no candidate.
type Reason string

const (
	ReasonEmptySubscription Reason = "empty_subscription"
	ReasonAllUnreachable    Reason = "all_unreachable"
	ReasonFilteredOut       Reason = "filtered_out"
)

const (
	CodeNoReachableNode = "NO_REACHABLE_NODE"
	CodeNodeNotFound    = "NODE_NOT_FOUND"
	CodeAmbiguousNode   = "NODE_AMBIGUOUS"
)

var (
	// ErrNoReachableNode matches every selection failure regardless of Reason.
	ErrNoReachableNode = errors.New("no reachable node")
	ErrNodeNotFound    = errors.New("node not found")
	ErrAmbiguousNode   = errors.New("node name is ambiguous")
)

// Error is returned when no node can be selected.
type Error struct {
	AppError domain.AppError
	Reason   Reason
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s (%s): %s", e.AppError.Code, e.Reason, e.AppError.Message)
}

func (e *Error) Is(target error) bool { return target == ErrNoReachableNode }

func noReachable(reason Reason, message string) *Error {
	return &Error{
		AppError: domain.AppError{
			Code:    CodeNoReachableNode,
			Message: message,
			Stage:   domain.StageSelect,
		},
		Reason: reason,
	}
}

// LookupError is returned when a manual node query matches zero or several nodes.
type LookupError struct {
	AppError   domain.AppError
	Candidates []string
	sentinel   error
}

func (e *LookupError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
}

func (e *LookupError) Unwrap() error { return e.sentinel }
