package domain

import (
	"time"
)

// ProbeErrorKind classifies why a probe failed.
type ProbeErrorKind string

const (
	ProbeErrNone        ProbeErrorKind = ""
	ProbeErrTimeout     ProbeErrorKind = "timeout"
	ProbeErrRefused     ProbeErrorKind = "refused"
	ProbeErrDNS         ProbeErrorKind = "dns"
	ProbeErrUnreachable ProbeErrorKind = "unreachable"
	ProbeErrReset       ProbeErrorKind = "reset"
	ProbeErrCanceled    ProbeErrorKind = "canceled"
	ProbeErrOther       ProbeErrorKind = "other"
)

// ProbeResult is one node's health sample for one probing cycle.
//
// It is a tagged result: latency only exists when the probe succeeded,
// so a failed probe can never be ranked as if it had a real latency.
type ProbeResult struct {
	Node *Node

	latency time.Duration
	kind    ProbeErrorKind
	detail  string
}

// Reachable builds a successful sample.
func Reachable(n *Node, latency time.Duration) ProbeResult {
	return ProbeResult{Node: n, latency: latency}
}

// Unreachable builds a failed sample.
func Unreachable(n *Node, kind ProbeErrorKind, detail string) ProbeResult {
	if kind == ProbeErrNone {
		kind = ProbeErrOther
	}
	return ProbeResult{Node: n, kind: kind, detail: detail}
}

// Reachable reports whether the probe succeeded.
func (r ProbeResult) Reachable() bool { return r.kind == ProbeErrNone && r.Node != nil }

// Latency returns the measured latency; ok is false when the node was unreachable.
func (r ProbeResult) Latency() (latency time.Duration, ok bool) {
	if !r.Reachable() {
		return 0, false
	}
	return r.latency, true
}

// ErrorKind is empty on success.
func (r ProbeResult) ErrorKind() ProbeErrorKind { return r.kind }

// ErrorDetail is the underlying error text on failure.
func (r ProbeResult) ErrorDetail() string { return r.detail }

// ProbeResults maps node name to its sample.
type ProbeResults map[string]ProbeResult

// ProbeCycle is a completed probing pass over one subscription generation.
type ProbeCycle struct {
	Generation  uint64
	StartedAt   time.Time
	CompletedAt time.Time
	Results     ProbeResults
}

// Result returns the sample for a node of the cycle's subscription.
func (c *ProbeCycle) Result(name string) (ProbeResult, bool) {
	if c == nil {
		return ProbeResult{}, false
	}
	r, ok := c.Results[name]
	return r, ok
}
