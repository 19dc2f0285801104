package domain

import "time"

// Trigger names why a re-selection happened.
type Trigger string

const (
	TriggerManual       Trigger = "manual"
	TriggerAuto         Trigger = "auto"
	TriggerSubscription Trigger = "subscription"
	TriggerRefresh      Trigger = "refresh"
	TriggerGame         Trigger = "game"
	TriggerStart        Trigger = "start"
)

// Selection is the active node choice. Node points into the current
// Subscription's node set; it is never a copy.
type Selection struct {
	Node       *Node
	Result     ProbeResult
	SelectedAt time.Time
	Generation uint64
	Trigger    Trigger
}

// Latency returns the latency that justified the choice.
func (s *Selection) Latency() time.Duration {
	if s == nil {
		return 0
	}
	l, _ := s.Result.Latency()
	return l
}

// Name returns the selected node name, or "" for a nil selection.
func (s *Selection) Name() string {
	if s == nil || s.Node == nil {
		return ""
	}
	return s.Node.Name
}

// ValidFor reports whether the selection still references a node of sub.
func (s *Selection) ValidFor(sub *Subscription) bool {
	if s == nil || sub == nil {
		return false
	}
	return s.Generation == sub.Generation && sub.Owns(s.Node)
}
