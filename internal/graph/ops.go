package graph

import (
	"fmt"
	"slices"
)

// Op is one self-contained, invertible graph mutation. The set of variants is
// closed; Composite bundles several so they apply and invert as one unit.
type Op interface {
	isOp()
	apply(g *Graph) error
	Invert() Op
}

type AddNodes struct {
	Nodes []Placed[Node]
	Edges []Placed[Edge]
}

type RemoveNodes struct {
	Nodes []Placed[Node]
	Edges []Placed[Edge]
}

// MoveNodes covers both a single moveNode and a batch drag.
type MoveNodes struct {
	IDs  []string
	From []Vec3
	To   []Vec3
}

type UpdateNode struct {
	ID    string
	Patch NodePatch
	Prev  NodePatch
}

type AddEdges struct {
	Edges []Placed[Edge]
}

type RemoveEdges struct {
	Edges []Placed[Edge]
}

type Composite struct {
	Label string
	Ops   []Op
}

func (AddNodes) isOp()    {}
func (RemoveNodes) isOp() {}
func (MoveNodes) isOp()   {}
func (UpdateNode) isOp()  {}
func (AddEdges) isOp()    {}
func (RemoveEdges) isOp() {}
func (Composite) isOp()   {}

// Apply runs op against a copy of g. On error g's copy is discarded, so a
// composite either lands completely or not at all.
func Apply(g Graph, op Op) (Graph, error) {
	next := g.Clone()
	if err := op.apply(&next); err != nil {
		return g, err
	}
	return next, nil
}

func (op AddNodes) apply(g *Graph) error {
	for _, p := range op.Nodes {
		if g.HasNode(p.Value.ID) {
			return fmt.Errorf("add node %q: %w", p.Value.ID, ErrDuplicateID)
		}
	}
	g.Nodes = insertPlaced(g.Nodes, clonePlacedNodes(op.Nodes))
	return insertEdges(g, op.Edges)
}

func (op AddNodes) Invert() Op { return RemoveNodes(op) }

func (op RemoveNodes) apply(g *Graph) error {
	drop := make(map[string]bool, len(op.Nodes))
	for _, p := range op.Nodes {
		if !g.HasNode(p.Value.ID) {
			return fmt.Errorf("remove node %q: %w", p.Value.ID, ErrUnknownNode)
		}
		drop[p.Value.ID] = true
	}
	g.Nodes = removeWhere(g.Nodes, func(n Node) bool { return drop[n.ID] })
	// Prune every edge touching a removed node, recorded or not.
	g.Edges = removeWhere(g.Edges, func(e Edge) bool { return drop[e.A] || drop[e.B] })
	return nil
}

func (op RemoveNodes) Invert() Op { return AddNodes(op) }

func (op MoveNodes) apply(g *Graph) error {
	if len(op.IDs) != len(op.To) {
		return fmt.Errorf("move nodes: %d ids for %d positions", len(op.IDs), len(op.To))
	}
	for i, id := range op.IDs {
		idx := g.NodeIndex(id)
		if idx < 0 {
			return fmt.Errorf("move node %q: %w", id, ErrUnknownNode)
		}
		g.Nodes[idx].Position = op.To[i]
	}
	return nil
}

func (op MoveNodes) Invert() Op {
	return MoveNodes{IDs: op.IDs, From: op.To, To: op.From}
}

func (op UpdateNode) apply(g *Graph) error {
	idx := g.NodeIndex(op.ID)
	if idx < 0 {
		return fmt.Errorf("update node %q: %w", op.ID, ErrUnknownNode)
	}
	op.Patch.applyTo(&g.Nodes[idx])
	return nil
}

func (op UpdateNode) Invert() Op {
	return UpdateNode{ID: op.ID, Patch: op.Prev, Prev: op.Patch}
}

func (op AddEdges) apply(g *Graph) error { return insertEdges(g, op.Edges) }

func (op AddEdges) Invert() Op { return RemoveEdges(op) }

func (op RemoveEdges) apply(g *Graph) error {
	drop := make(map[string]bool, len(op.Edges))
	for _, p := range op.Edges {
		if g.EdgeIndex(p.Value.ID) < 0 {
			return fmt.Errorf("remove edge %q: %w", p.Value.ID, ErrUnknownEdge)
		}
		drop[p.Value.ID] = true
	}
	g.Edges = removeWhere(g.Edges, func(e Edge) bool { return drop[e.ID] })
	return nil
}

func (op RemoveEdges) Invert() Op { return AddEdges(op) }

func (op Composite) apply(g *Graph) error {
	for _, sub := range op.Ops {
		if err := sub.apply(g); err != nil {
			return fmt.Errorf("%s: %w", op.Label, err)
		}
	}
	return nil
}

func (op Composite) Invert() Op {
	inv := make([]Op, len(op.Ops))
	for i, sub := range op.Ops {
		inv[len(op.Ops)-1-i] = sub.Invert()
	}
	return Composite{Label: op.Label, Ops: inv}
}

func insertEdges(g *Graph, edges []Placed[Edge]) error {
	for _, p := range edges {
		if g.EdgeIndex(p.Value.ID) >= 0 {
			return fmt.Errorf("add edge %q: %w", p.Value.ID, ErrDuplicateID)
		}
		if p.Value.A == p.Value.B {
			return fmt.Errorf("add edge %q: %w", p.Value.ID, ErrSelfLoop)
		}
	}
	g.Edges = insertPlaced(g.Edges, edges)
	for _, p := range edges {
		if !g.HasNode(p.Value.A) || !g.HasNode(p.Value.B) {
			return fmt.Errorf("add edge %q: %w", p.Value.ID, ErrUnknownNode)
		}
	}
	return nil
}

func clonePlacedNodes(in []Placed[Node]) []Placed[Node] {
	out := slices.Clone(in)
	for i := range out {
		out[i].Value = out[i].Value.clone()
	}
	return out
}

// NodePatch is a field-level update; nil fields are left untouched.
type NodePatch struct {
	Label       *string   `json:"label,omitempty"`
	Position    *Vec3     `json:"position,omitempty"`
	Type        *NodeType `json:"type,omitempty"`
	Color       *string   `json:"color,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	Description *string   `json:"description,omitempty"`
}

func (p NodePatch) Empty() bool {
	return p.Label == nil && p.Position == nil && p.Type == nil &&
		p.Color == nil && p.Tags == nil && p.Description == nil
}

func (p NodePatch) applyTo(n *Node) {
	if p.Label != nil {
		n.Label = *p.Label
	}
	if p.Position != nil {
		n.Position = *p.Position
	}
	if p.Type != nil {
		n.Type = *p.Type
	}
	if p.Color != nil {
		n.Color = *p.Color
	}
	if p.Tags != nil {
		n.Tags = slices.Clone(*p.Tags)
	}
	if p.Description != nil {
		n.Description = *p.Description
	}
}

// capture records n's current values for exactly the fields p touches.
func (p NodePatch) capture(n Node) NodePatch {
	var prev NodePatch
	if p.Label != nil {
		prev.Label = &n.Label
	}
	if p.Position != nil {
		prev.Position = &n.Position
	}
	if p.Type != nil {
		prev.Type = &n.Type
	}
	if p.Color != nil {
		prev.Color = &n.Color
	}
	if p.Tags != nil {
		tags := slices.Clone(n.Tags)
		prev.Tags = &tags
	}
	if p.Description != nil {
		prev.Description = &n.Description
	}
	return prev
}
