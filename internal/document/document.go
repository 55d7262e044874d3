package document

import (
	"github.com/DoyleJ11/opsboard-relay/internal/graph"
)

// Object is an opaque client-owned record (a note, a planning path, a
// weapon entry). The relay stores and forwards it without interpreting it.
type Object = map[string]any

// Board is the authoritative shared state for one board id. Every field is
// replaced wholesale by a patch; fields absent from a patch are untouched.
type Board struct {
	ID      string      `json:"id"`
	Version int         `json:"version"`
	Nodes   []Object    `json:"nodes"`
	Edges   []Object    `json:"edges"`
	Paths   []Object    `json:"paths"`
	Graph3D graph.Graph `json:"graph3d"`
}

func NewBoard(id string) Board {
	return Board{
		ID:      id,
		Nodes:   []Object{},
		Edges:   []Object{},
		Paths:   []Object{},
		Graph3D: graph.NewGraph(),
	}
}

// Apply replaces every field present in p. The version only moves when
// something was replaced.
func (b *Board) Apply(p BoardPatch) {
	if p.Empty() {
		return
	}
	if p.Nodes != nil {
		b.Nodes = *p.Nodes
	}
	if p.Edges != nil {
		b.Edges = *p.Edges
	}
	if p.Paths != nil {
		b.Paths = *p.Paths
	}
	if p.Graph3D != nil {
		b.Graph3D = p.Graph3D.Clone()
	}
	b.Version++
}

// Clone copies the board deeply enough that the caller may hand it to another
// goroutine. Objects are shared; they are never mutated in place.
func (b Board) Clone() Board {
	out := b
	out.Nodes = cloneObjects(b.Nodes)
	out.Edges = cloneObjects(b.Edges)
	out.Paths = cloneObjects(b.Paths)
	out.Graph3D = b.Graph3D.Clone()
	return out
}

func cloneObjects(in []Object) []Object {
	out := make([]Object, len(in))
	copy(out, in)
	return out
}
