package graph

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
)

const (
	DefaultNodeLabel = "Node"
	DefaultNodeColor = "#22d3ee"
	DefaultEdgeColor = "#64748b"
)

// Editor is the local, single-threaded view of a graph document. Every
// mutating call records one undoable entry and clears the redo stack.
// Editor is not safe for concurrent use.
type Editor struct {
	graph    Graph
	past     []Op
	future   []Op
	selected []string
	drag     *drag
	newID    func(prefix string) string
	onChange func(Graph)
}

type drag struct {
	ids  []string
	from []Vec3
}

type EditorOption func(*Editor)

// WithIDGenerator replaces the uuid-based id source, mostly for tests.
func WithIDGenerator(fn func(prefix string) string) EditorOption {
	return func(e *Editor) { e.newID = fn }
}

// WithChangeHook is called with a snapshot after every local change, which
// is where a client pushes the document to the relay.
func WithChangeHook(fn func(Graph)) EditorOption {
	return func(e *Editor) { e.onChange = fn }
}

func NewEditor(g Graph, opts ...EditorOption) *Editor {
	e := &Editor{
		graph: g.Clone(),
		newID: func(prefix string) string { return prefix + uuid.NewString() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Editor) Graph() Graph { return e.graph.Clone() }

// Load replaces the local view with a remote snapshot. History no longer
// describes the new state, so both stacks are dropped.
func (e *Editor) Load(g Graph) {
	e.graph = g.Clone()
	e.past, e.future = nil, nil
	e.drag = nil
	e.selected = slices.DeleteFunc(e.selected, func(id string) bool { return !e.graph.HasNode(id) })
}

func (e *Editor) CanUndo() bool { return len(e.past) > 0 }
func (e *Editor) CanRedo() bool { return len(e.future) > 0 }

// History returns the sizes of the undo and redo stacks.
func (e *Editor) History() (undo, redo int) { return len(e.past), len(e.future) }

func (e *Editor) commit(op Op) error {
	next, err := Apply(e.graph, op)
	if err != nil {
		return err
	}
	e.graph = next
	e.past = append(e.past, op)
	e.future = nil
	e.notify()
	return nil
}

func (e *Editor) notify() {
	if e.onChange != nil {
		e.onChange(e.graph.Clone())
	}
}

// Undo is a no-op on an empty stack.
func (e *Editor) Undo() bool {
	e.finishDrag()
	if len(e.past) == 0 {
		return false
	}
	op := e.past[len(e.past)-1]
	next, err := Apply(e.graph, op.Invert())
	if err != nil {
		// The stack no longer matches the graph; drop it rather than
		// apply a partial rollback.
		e.past, e.future = nil, nil
		return false
	}
	e.graph = next
	e.past = e.past[:len(e.past)-1]
	e.future = append(e.future, op)
	e.pruneSelection()
	e.notify()
	return true
}

// Redo is a no-op on an empty stack.
func (e *Editor) Redo() bool {
	e.finishDrag()
	if len(e.future) == 0 {
		return false
	}
	op := e.future[len(e.future)-1]
	next, err := Apply(e.graph, op)
	if err != nil {
		e.past, e.future = nil, nil
		return false
	}
	e.graph = next
	e.future = e.future[:len(e.future)-1]
	e.past = append(e.past, op)
	e.pruneSelection()
	e.notify()
	return true
}

// AddNode always succeeds, filling defaults for empty label and color.
func (e *Editor) AddNode(label string, pos Vec3, typ NodeType, color string) string {
	if label == "" {
		label = DefaultNodeLabel
	}
	if color == "" {
		color = DefaultNodeColor
	}
	if typ == "" || !typ.Valid() {
		typ = TypeNode
	}
	n := Node{ID: e.nodeID(), Label: label, Position: pos, Type: typ, Color: color}
	op := AddNodes{Nodes: []Placed[Node]{{Index: len(e.graph.Nodes), Value: n}}}
	if err := e.commit(op); err != nil {
		return ""
	}
	return n.ID
}

// uniqueID draws ids until taken reports false. A generator that keeps
// colliding falls back to a uuid suffix.
func (e *Editor) uniqueID(prefix string, taken func(string) bool) string {
	for i := 0; i < 8; i++ {
		if id := e.newID(prefix); !taken(id) {
			return id
		}
	}
	for {
		if id := prefix + uuid.NewString(); !taken(id) {
			return id
		}
	}
}

func (e *Editor) nodeID() string {
	return e.uniqueID("n_", e.graph.HasNode)
}

// edgeID also avoids ids handed out but not yet committed.
func (e *Editor) edgeID(pending ...string) string {
	return e.uniqueID("e_", func(id string) bool {
		return e.graph.EdgeIndex(id) >= 0 || slices.Contains(pending, id)
	})
}

func (e *Editor) RemoveNode(id string) bool { return e.RemoveNodes(id) }

// RemoveNodes drops the present ids and every edge touching them as one entry.
func (e *Editor) RemoveNodes(ids ...string) bool {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		if e.graph.HasNode(id) {
			drop[id] = true
		}
	}
	if len(drop) == 0 {
		return false
	}
	op := RemoveNodes{
		Nodes: placedNodes(e.graph, func(n Node) bool { return drop[n.ID] }),
		Edges: placedEdges(e.graph, func(ed Edge) bool { return drop[ed.A] || drop[ed.B] }),
	}
	if err := e.commit(op); err != nil {
		return false
	}
	e.pruneSelection()
	return true
}

func (e *Editor) RemoveSelected() bool { return e.RemoveNodes(e.selected...) }

func (e *Editor) UpdateNodePosition(id string, pos Vec3) error {
	n, ok := e.graph.Node(id)
	if !ok {
		return ErrUnknownNode
	}
	if n.Position == pos {
		return nil
	}
	return e.commit(MoveNodes{IDs: []string{id}, From: []Vec3{n.Position}, To: []Vec3{pos}})
}

func (e *Editor) UpdateNode(id string, patch NodePatch) error {
	n, ok := e.graph.Node(id)
	if !ok {
		return ErrUnknownNode
	}
	if patch.Empty() {
		return nil
	}
	if patch.Type != nil && !patch.Type.Valid() {
		return fmt.Errorf("update node %q: invalid type %q", id, *patch.Type)
	}
	return e.commit(UpdateNode{ID: id, Patch: patch, Prev: patch.capture(n)})
}

func (e *Editor) AddEdge(a, b string) (string, error) {
	if err := e.graph.CanConnect(a, b); err != nil {
		return "", err
	}
	ed := Edge{ID: e.edgeID(), A: a, B: b, Color: DefaultEdgeColor}
	if err := e.commit(AddEdges{Edges: []Placed[Edge]{{Index: len(e.graph.Edges), Value: ed}}}); err != nil {
		return "", err
	}
	return ed.ID, nil
}

// RemoveEdge is a no-op for an unknown id.
func (e *Editor) RemoveEdge(id string) bool {
	i := e.graph.EdgeIndex(id)
	if i < 0 {
		return false
	}
	return e.commit(RemoveEdges{Edges: []Placed[Edge]{{Index: i, Value: e.graph.Edges[i]}}}) == nil
}

// SplitEdge replaces an edge with a new node at pos wired to both former
// endpoints. The three effects form a single undo entry.
func (e *Editor) SplitEdge(edgeID string, pos Vec3) (string, error) {
	i := e.graph.EdgeIndex(edgeID)
	if i < 0 {
		return "", ErrUnknownEdge
	}
	old := e.graph.Edges[i]
	n := Node{ID: e.nodeID(), Label: DefaultNodeLabel, Position: pos, Type: TypeNode, Color: DefaultNodeColor}
	left := e.edgeID()
	right := e.edgeID(left)
	color := old.Color
	if color == "" {
		color = DefaultEdgeColor
	}
	remaining := len(e.graph.Edges) - 1
	op := Composite{Label: "splitEdge", Ops: []Op{
		RemoveEdges{Edges: []Placed[Edge]{{Index: i, Value: old}}},
		AddNodes{Nodes: []Placed[Node]{{Index: len(e.graph.Nodes), Value: n}}},
		AddEdges{Edges: []Placed[Edge]{
			{Index: remaining, Value: Edge{ID: left, A: old.A, B: n.ID, Color: color}},
			{Index: remaining + 1, Value: Edge{ID: right, A: n.ID, B: old.B, Color: color}},
		}},
	}}
	if err := e.commit(op); err != nil {
		return "", err
	}
	return n.ID, nil
}

// Connect adds one edge per pair as a single labelled entry, skipping pairs
// that would be a self-loop, dangle or duplicate an existing edge.
func (e *Editor) Connect(label string, pairs [][2]string) ([]string, error) {
	scratch := e.graph.Clone()
	var placed []Placed[Edge]
	var ids []string
	for _, p := range pairs {
		if scratch.CanConnect(p[0], p[1]) != nil {
			continue
		}
		ed := Edge{ID: e.edgeID(ids...), A: p[0], B: p[1], Color: DefaultEdgeColor}
		placed = append(placed, Placed[Edge]{Index: len(scratch.Edges), Value: ed})
		scratch.Edges = append(scratch.Edges, ed)
		ids = append(ids, ed.ID)
	}
	if len(placed) == 0 {
		return nil, nil
	}
	if err := e.commit(Composite{Label: label, Ops: []Op{AddEdges{Edges: placed}}}); err != nil {
		return nil, err
	}
	return ids, nil
}

// MoveTo sets absolute positions for many nodes as one entry.
func (e *Editor) MoveTo(ids []string, to []Vec3) error {
	if len(ids) != len(to) {
		return fmt.Errorf("move: %d ids for %d positions", len(ids), len(to))
	}
	var op MoveNodes
	for i, id := range ids {
		n, ok := e.graph.Node(id)
		if !ok {
			return fmt.Errorf("move node %q: %w", id, ErrUnknownNode)
		}
		if n.Position == to[i] {
			continue
		}
		op.IDs = append(op.IDs, id)
		op.From = append(op.From, n.Position)
		op.To = append(op.To, to[i])
	}
	if len(op.IDs) == 0 {
		return nil
	}
	return e.commit(op)
}

// StartMoveNodes snapshots positions at the start of a drag gesture.
func (e *Editor) StartMoveNodes(ids ...string) {
	e.finishDrag()
	d := &drag{}
	for _, id := range ids {
		if n, ok := e.graph.Node(id); ok {
			d.ids = append(d.ids, id)
			d.from = append(d.from, n.Position)
		}
	}
	e.drag = d
}

// MoveNodes translates nodes by delta. Inside a drag gesture the change is
// not recorded until EndMoveNodes; outside one it is its own entry.
func (e *Editor) MoveNodes(ids []string, delta Vec3) {
	if e.drag == nil {
		var to []Vec3
		var present []string
		for _, id := range ids {
			if n, ok := e.graph.Node(id); ok {
				present = append(present, id)
				to = append(to, n.Position.Add(delta))
			}
		}
		_ = e.MoveTo(present, to)
		return
	}
	changed := false
	for _, id := range ids {
		i := e.graph.NodeIndex(id)
		if i < 0 {
			continue
		}
		// A node first touched mid-gesture joins it from where it stands.
		if !slices.Contains(e.drag.ids, id) {
			e.drag.ids = append(e.drag.ids, id)
			e.drag.from = append(e.drag.from, e.graph.Nodes[i].Position)
		}
		e.graph.Nodes[i].Position = e.graph.Nodes[i].Position.Add(delta)
		changed = true
	}
	if changed {
		e.notify()
	}
}

// EndMoveNodes closes the gesture and records the net movement of the
// dragged nodes as exactly one entry. ids narrows which nodes are committed;
// none means all of them. Dragged nodes left out return to where the gesture
// found them, so no movement escapes the history.
func (e *Editor) EndMoveNodes(ids ...string) {
	d := e.drag
	e.drag = nil
	if d == nil {
		return
	}
	var op MoveNodes
	reverted := false
	for i, id := range d.ids {
		j := e.graph.NodeIndex(id)
		if j < 0 || e.graph.Nodes[j].Position == d.from[i] {
			continue
		}
		if len(ids) > 0 && !slices.Contains(ids, id) {
			e.graph.Nodes[j].Position = d.from[i]
			reverted = true
			continue
		}
		n := e.graph.Nodes[j]
		op.IDs = append(op.IDs, id)
		op.From = append(op.From, d.from[i])
		op.To = append(op.To, n.Position)
	}
	if reverted {
		e.notify()
	}
	if len(op.IDs) == 0 {
		return
	}
	// Positions are already applied; only history changes here.
	e.past = append(e.past, op)
	e.future = nil
}

func (e *Editor) Dragging() bool { return e.drag != nil }

func (e *Editor) finishDrag() {
	if e.drag != nil {
		e.EndMoveNodes()
	}
}

func (e *Editor) Select(ids ...string) {
	sel := make([]string, 0, len(ids))
	for _, id := range ids {
		if e.graph.HasNode(id) && !slices.Contains(sel, id) {
			sel = append(sel, id)
		}
	}
	e.selected = sel
}

func (e *Editor) ToggleSelect(id string) {
	if i := slices.Index(e.selected, id); i >= 0 {
		e.selected = slices.Delete(e.selected, i, i+1)
		return
	}
	if e.graph.HasNode(id) {
		e.selected = append(e.selected, id)
	}
}

func (e *Editor) ClearSelection() { e.selected = nil }

func (e *Editor) Selected() []string { return slices.Clone(e.selected) }

func (e *Editor) pruneSelection() {
	e.selected = slices.DeleteFunc(e.selected, func(id string) bool { return !e.graph.HasNode(id) })
}
