package domain

import "time"

// Subscription is the ownership root of a node set.
// Replacing it discards every Node, probe cycle and Selection tied to it.
type Subscription struct {
	// Source is the URL, file path or "inline" the payload came from.
	Source string

	FetchedAt time.Time

	// Generation increases on every replacement. Probe cycles and selections
	// carry it so stale data is detected instead of reused.
	Generation uint64

	Nodes []*Node

	byName map[string]*Node
}

// NewSubscription builds a snapshot. Node names must already be unique.
func NewSubscription(source string, fetchedAt time.Time, generation uint64, nodes []*Node) *Subscription {
	idx := make(map[string]*Node, len(nodes))
	for _, n := range nodes {
		idx[n.Name] = n
	}
	return &Subscription{
		Source:     source,
		FetchedAt:  fetchedAt,
		Generation: generation,
		Nodes:      nodes,
		byName:     idx,
	}
}

// Lookup returns the node with the given name.
func (s *Subscription) Lookup(name string) (*Node, bool) {
	if s == nil {
		return nil, false
	}
	n, ok := s.byName[name]
	return n, ok
}

// HasHistoryID reports whether a node of this snapshot has the given HistoryID.
func (s *Subscription) HasHistoryID(id string) bool {
	if s == nil {
		return false
	}
	for _, n := range s.Nodes {
		if n.HistoryID() == id {
			return true
		}
	}
	return false
}

// Owns reports whether n is one of this snapshot's node objects (pointer identity).
func (s *Subscription) Owns(n *Node) bool {
	if s == nil || n == nil {
		return false
	}
	cur, ok := s.byName[n.Name]
	return ok && cur == n
}

// Len returns the number of nodes.
func (s *Subscription) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Nodes)
}
