package selection

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/MrSnakeDoc/clashfun/internal/domain"
)

// Filter restricts the candidate set. A nil Filter accepts every node.
type Filter func(*domain.Node) bool

// ByRegion accepts nodes whose region label equals one of regions, or whose
// name contains one of them. Matching ignores case. No regions means no filter.
func ByRegion(regions ...string) Filter {
	wanted := lo.FilterMap(regions, func(r string, _ int) (string, bool) {
		r = strings.ToLower(strings.TrimSpace(r))
		return r, r != ""
	})
	if len(wanted) == 0 {
		return nil
	}
	return func(n *domain.Node) bool {
		region := strings.ToLower(n.Region)
		name := strings.ToLower(n.Name)
		return lo.SomeBy(wanted, func(w string) bool {
			return region == w || strings.Contains(name, w)
		})
	}
}

// Only accepts the single node with the given name.
func Only(name string) Filter {
	return func(n *domain.Node) bool { return n.Name == name }
}

// And combines filters; nil entries are skipped.
func And(filters ...Filter) Filter {
	active := lo.Filter(filters, func(f Filter, _ int) bool { return f != nil })
	switch len(active) {
	case 0:
		return nil
	case 1:
		return active[0]
	}
	return func(n *domain.Node) bool {
		return lo.EveryBy(active, func(f Filter) bool { return f(n) })
	}
}

// FindNode resolves a user query to one node: an exact name match wins,
// otherwise the query must be a case-insensitive substring of exactly one name.
func FindNode(nodes []*domain.Node, query string) (*domain.Node, error) {
	query = strings.TrimSpace(query)
	if n, ok := lo.Find(nodes, func(n *domain.Node) bool { return n.Name == query }); ok {
		return n, nil
	}

	needle := strings.ToLower(query)
	matches := lo.Filter(nodes, func(n *domain.Node, _ int) bool {
		return needle != "" && strings.Contains(strings.ToLower(n.Name), needle)
	})
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return nil, &LookupError{
			AppError: domain.AppError{
				Code:    CodeNodeNotFound,
				Message: fmt.Sprintf("no node matches %q", query),
				Stage:   domain.StageSelect,
				Node:    query,
			},
			sentinel: ErrNodeNotFound,
		}
	default:
		names := lo.Map(matches, func(n *domain.Node, _ int) string { return n.Name })
		return nil, &LookupError{
			AppError: domain.AppError{
				Code:    CodeAmbiguousNode,
				Message: fmt.Sprintf("%d nodes match %q", len(matches), query),
				Stage:   domain.StageSelect,
				Node:    query,
				Hint:    "matches: " + strings.Join(names, ", "),
			},
			Candidates: names,
			sentinel:   ErrAmbiguousNode,
		}
	}
}
