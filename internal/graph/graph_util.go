package graph

import "slices"

func NewGraph() Graph {
	return Graph{Nodes: []Node{}, Edges: []Edge{}}
}

// Clone deep-copies the graph so callers can hand it across goroutines.
func (g Graph) Clone() Graph {
	out := Graph{
		Nodes: make([]Node, len(g.Nodes)),
		Edges: slices.Clone(g.Edges),
	}
	if out.Edges == nil {
		out.Edges = []Edge{}
	}
	for i, n := range g.Nodes {
		out.Nodes[i] = n.clone()
	}
	return out
}

func (n Node) clone() Node {
	if n.Tags != nil {
		n.Tags = slices.Clone(n.Tags)
	}
	return n
}

// normalize keeps empty collections non-nil so that removing the last
// element and restoring it compare equal to the starting state.
func (g *Graph) normalize() {
	if g.Nodes == nil {
		g.Nodes = []Node{}
	}
	if g.Edges == nil {
		g.Edges = []Edge{}
	}
}

// Placed pins an element to the slice index it occupied (or will occupy),
// so that an inverse operation restores ordering exactly.
type Placed[T any] struct {
	Index int `json:"index"`
	Value T   `json:"value"`
}

// insertPlaced expects items sorted by ascending Index.
func insertPlaced[T any](s []T, items []Placed[T]) []T {
	for _, it := range items {
		i := min(max(it.Index, 0), len(s))
		s = slices.Insert(s, i, it.Value)
	}
	return s
}

func removeWhere[T any](s []T, drop func(T) bool) []T {
	out := s[:0]
	for _, v := range s {
		if !drop(v) {
			out = append(out, v)
		}
	}
	return out
}

func placedNodes(g Graph, keep func(Node) bool) []Placed[Node] {
	var out []Placed[Node]
	for i, n := range g.Nodes {
		if keep(n) {
			out = append(out, Placed[Node]{Index: i, Value: n.clone()})
		}
	}
	return out
}

func placedEdges(g Graph, keep func(Edge) bool) []Placed[Edge] {
	var out []Placed[Edge]
	for i, e := range g.Edges {
		if keep(e) {
			out = append(out, Placed[Edge]{Index: i, Value: e})
		}
	}
	return out
}
