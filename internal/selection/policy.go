package selection

import (
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/MrSnakeDoc/clashfun/internal/domain"
)

// DefaultEpsilon is the latency difference under which two nodes tie.
const DefaultEpsilon = 5 * time.Millisecond

// Policy ranks probe results and picks the active node.
type Policy struct {
	epsilon time.Duration
	now     func() time.Time
}

func NewPolicy(epsilon time.Duration) *Policy {
	if epsilon < 0 {
		epsilon = 0
	}
	return &Policy{epsilon: epsilon, now: time.Now}
}

// Epsilon returns the tie window.
func (p *Policy) Epsilon() time.Duration { return p.epsilon }

// Select returns the reachable node with the lowest latency.
//
// Nodes within epsilon of the best latency tie. Among tied nodes the
// previous selection wins if present, otherwise the smallest name, so the
// same inputs always yield the same node. The returned Selection carries
// no Generation or Trigger; the caller sets them.
func (p *Policy) Select(results domain.ProbeResults, previous *domain.Selection, filter Filter) (*domain.Selection, error) {
	if len(results) == 0 {
		return nil, noReachable(ReasonEmptySubscription, "subscription has no nodes")
	}

	reachable := lo.Filter(lo.Values(results), func(r domain.ProbeResult, _ int) bool { return r.Reachable() })
	if len(reachable) == 0 {
		return nil, noReachable(ReasonAllUnreachable, "all nodes are unreachable")
	}

	candidates := reachable
	if filter != nil {
		candidates = lo.Filter(reachable, func(r domain.ProbeResult, _ int) bool { return filter(r.Node) })
	}
	if len(candidates) == 0 {
		return nil, noReachable(ReasonFilteredOut, "no reachable node matches the active filter")
	}

	best := lo.MinBy(candidates, func(a, b domain.ProbeResult) bool { return latencyOf(a) < latencyOf(b) })
	limit := latencyOf(best) + p.epsilon
	tied := lo.Filter(candidates, func(r domain.ProbeResult, _ int) bool { return latencyOf(r) <= limit })

	chosen, stay := lo.Find(tied, func(r domain.ProbeResult) bool {
		return previous != nil && r.Node.Name == previous.Name()
	})
	if !stay {
		chosen = lo.MinBy(tied, func(a, b domain.ProbeResult) bool { return a.Node.Name < b.Node.Name })
	}

	return &domain.Selection{
		Node:       chosen.Node,
		Result:     chosen,
		SelectedAt: p.now(),
	}, nil
}

// Rank orders results for display: reachable nodes by latency then name,
// followed by unreachable nodes by name.
func Rank(results domain.ProbeResults) []domain.ProbeResult {
	out := lo.Values(results)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Reachable() != b.Reachable() {
			return a.Reachable()
		}
		if a.Reachable() && latencyOf(a) != latencyOf(b) {
			return latencyOf(a) < latencyOf(b)
		}
		return a.Node.Name < b.Node.Name
	})
	return out
}

func latencyOf(r domain.ProbeResult) time.Duration {
	l, _ := r.Latency()
	return l
}
