package domain

import "time"

// SubscriptionSnapshot is the raw payload kept so a restart can re-parse it.
// It is never authoritative: parsing it again yields a new Subscription.
type SubscriptionSnapshot struct {
	Source    string    `json:"source"`
	Format    string    `json:"format"`
	FetchedAt time.Time `json:"fetched_at"`
	Raw       []byte    `json:"raw"`
}

// SelectionRecord remembers the last active node by name. After a restart
// it only breaks latency ties; the node is re-probed before use.
type SelectionRecord struct {
	Node       string    `json:"node"`
	LatencyMS  int64     `json:"latency_ms"`
	SelectedAt time.Time `json:"selected_at"`
	Trigger    Trigger   `json:"trigger"`
	Pinned     string    `json:"pinned,omitempty"`
}

// RecordOf converts a selection for persistence.
func RecordOf(s *Selection, pinned string) SelectionRecord {
	return SelectionRecord{
		Node:       s.Name(),
		LatencyMS:  s.Latency().Milliseconds(),
		SelectedAt: s.SelectedAt,
		Trigger:    s.Trigger,
		Pinned:     pinned,
	}
}

// ProbeSample is one entry of a node's probe history.
type ProbeSample struct {
	At        time.Time      `json:"at"`
	Reachable bool           `json:"reachable"`
	LatencyMS int64          `json:"latency_ms,omitempty"`
	ErrorKind ProbeErrorKind `json:"error_kind,omitempty"`
}

// SampleOf flattens a probe result taken at the given time.
func SampleOf(r ProbeResult, at time.Time) ProbeSample {
	s := ProbeSample{At: at, Reachable: r.Reachable(), ErrorKind: r.ErrorKind()}
	if l, ok := r.Latency(); ok {
		s.LatencyMS = l.Milliseconds()
	}
	return s
}
