package accelerator

import (
	"time"

	"github.com/MrSnakeDoc/clashfun/internal/domain"
	"github.com/MrSnakeDoc/clashfun/internal/gamedetect"
	"github.com/MrSnakeDoc/clashfun/internal/selection"
	"github.com/MrSnakeDoc/clashfun/internal/subscription"
)

// state is replaced wholesale on every write; readers get a consistent copy.
type state struct {
	sub      *domain.Subscription
	format   subscription.Format
	rejected []*subscription.ParseError

	cycle     *domain.ProbeCycle
	selection *domain.Selection
	selectErr error

	// pin restricts selection to one node until auto-select clears it.
	pin string
	// hint is a node name restored from a previous run, used as the
	// tie-break preference until a real selection exists.
	hint string

	game gamedetect.Signal
}

// SubscriptionInfo summarises the current subscription.
type SubscriptionInfo struct {
	Source     string
	Format     subscription.Format
	FetchedAt  time.Time
	Generation uint64
	Nodes      int
	Rejected   []*subscription.ParseError
}

// CycleInfo summarises the last completed probe cycle.
type CycleInfo struct {
	Generation  uint64
	StartedAt   time.Time
	CompletedAt time.Time
	Reachable   int
	Unreachable int
}

// Status is a point-in-time view of the accelerator.
type Status struct {
	Subscription   *SubscriptionInfo
	LastCycle      *CycleInfo
	Selection      *domain.Selection
	SelectionError error
	Pinned         string
	Game           gamedetect.Signal
	Session        domain.SessionStatus
}

// NodeView is one row of the node list.
type NodeView struct {
	Node   *domain.Node
	Result *domain.ProbeResult
	Active bool
}

// Report describes what a subscription replacement produced.
type Report struct {
	Generation     uint64
	Format         subscription.Format
	Nodes          int
	Rejected       []*subscription.ParseError
	Selection      *domain.Selection
	SelectionError error
}

func (s state) info() *SubscriptionInfo {
	if s.sub == nil {
		return nil
	}
	return &SubscriptionInfo{
		Source:     s.sub.Source,
		Format:     s.format,
		FetchedAt:  s.sub.FetchedAt,
		Generation: s.sub.Generation,
		Nodes:      s.sub.Len(),
		Rejected:   s.rejected,
	}
}

func (s state) cycleInfo() *CycleInfo {
	if s.cycle == nil {
		return nil
	}
	ci := &CycleInfo{
		Generation:  s.cycle.Generation,
		StartedAt:   s.cycle.StartedAt,
		CompletedAt: s.cycle.CompletedAt,
	}
	for _, r := range s.cycle.Results {
		if r.Reachable() {
			ci.Reachable++
		} else {
			ci.Unreachable++
		}
	}
	return ci
}

// previous returns the selection the policy should prefer on ties.
func (s state) previous() *domain.Selection {
	if s.selection.ValidFor(s.sub) {
		return s.selection
	}
	if n, ok := s.sub.Lookup(s.hint); ok {
		return &domain.Selection{Node: n}
	}
	return nil
}

func (s state) nodeViews() []NodeView {
	if s.sub == nil {
		return nil
	}
	active := ""
	if s.selection.ValidFor(s.sub) {
		active = s.selection.Name()
	}
	if s.cycle == nil {
		out := make([]NodeView, 0, s.sub.Len())
		for _, n := range s.sub.Nodes {
			out = append(out, NodeView{Node: n, Active: n.Name == active})
		}
		return out
	}
	ranked := selection.Rank(s.cycle.Results)
	out := make([]NodeView, 0, len(ranked))
	for i := range ranked {
		r := ranked[i]
		out = append(out, NodeView{Node: r.Node, Result: &r, Active: r.Node.Name == active})
	}
	return out
}
