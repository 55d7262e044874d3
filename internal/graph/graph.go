package graph

import (
	"errors"
	"math"
	"slices"
)

var ErrUnknownNode = errors.New("unknown node")
var ErrUnknownEdge = errors.New("unknown edge")
var ErrSelfLoop = errors.New("edge endpoints must differ")
var ErrDuplicateEdge = errors.New("edge already exists")
var ErrDuplicateID = errors.New("id already in use")

type Vec3 [3]float64

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v[0] + o[0], v[1] + o[1], v[2] + o[2]} }

func (v Vec3) Distance(o Vec3) float64 {
	dx, dy, dz := v[0]-o[0], v[1]-o[1], v[2]-o[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Midpoint between two positions, used when an edge is split.
func Midpoint(a, b Vec3) Vec3 {
	return Vec3{(a[0] + b[0]) / 2, (a[1] + b[1]) / 2, (a[2] + b[2]) / 2}
}

type NodeType string

const (
	TypeNode   NodeType = "node"
	TypeRouter NodeType = "router"
	TypeHub    NodeType = "hub"
	TypeGame   NodeType = "game"
)

type Node struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Position    Vec3     `json:"position"`
	Type        NodeType `json:"type,omitempty"`
	Color       string   `json:"color,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Description string   `json:"description,omitempty"`
}

// Kind is the node's tier, treating an unset type as a plain node.
func (n Node) Kind() NodeType {
	if n.Type == "" {
		return TypeNode
	}
	return n.Type
}

func (n Node) SharesTag(o Node) bool {
	for _, t := range n.Tags {
		if slices.Contains(o.Tags, t) {
			return true
		}
	}
	return false
}

// Edge is undirected; A and B are node ids.
type Edge struct {
	ID    string `json:"id"`
	A     string `json:"a"`
	B     string `json:"b"`
	Color string `json:"color,omitempty"`
}

func (e Edge) Touches(id string) bool { return e.A == id || e.B == id }

func (e Edge) Connects(a, b string) bool {
	return (e.A == a && e.B == b) || (e.A == b && e.B == a)
}

// Other returns the endpoint opposite id.
func (e Edge) Other(id string) string {
	if e.A == id {
		return e.B
	}
	return e.A
}

type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

func (g Graph) NodeIndex(id string) int {
	return slices.IndexFunc(g.Nodes, func(n Node) bool { return n.ID == id })
}

func (g Graph) EdgeIndex(id string) int {
	return slices.IndexFunc(g.Edges, func(e Edge) bool { return e.ID == id })
}

func (g Graph) Node(id string) (Node, bool) {
	i := g.NodeIndex(id)
	if i < 0 {
		return Node{}, false
	}
	return g.Nodes[i], true
}

func (g Graph) HasNode(id string) bool { return g.NodeIndex(id) >= 0 }

func (g Graph) HasEdge(a, b string) bool {
	return slices.ContainsFunc(g.Edges, func(e Edge) bool { return e.Connects(a, b) })
}

// CanConnect reports why an edge between a and b would be rejected, if at all.
func (g Graph) CanConnect(a, b string) error {
	if a == b {
		return ErrSelfLoop
	}
	if !g.HasNode(a) || !g.HasNode(b) {
		return ErrUnknownNode
	}
	if g.HasEdge(a, b) {
		return ErrDuplicateEdge
	}
	return nil
}

// Sanitize drops edges that reference missing nodes, loop on a single node
// or duplicate an earlier edge between the same pair. It returns the number
// of edges dropped.
func (g *Graph) Sanitize() int {
	g.normalize()
	kept := make([]Edge, 0, len(g.Edges))
	ids := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		ids[n.ID] = true
	}
	for _, e := range g.Edges {
		if e.A == e.B || !ids[e.A] || !ids[e.B] {
			continue
		}
		if slices.ContainsFunc(kept, func(k Edge) bool { return k.Connects(e.A, e.B) }) {
			continue
		}
		kept = append(kept, e)
	}
	dropped := len(g.Edges) - len(kept)
	g.Edges = kept
	return dropped
}
