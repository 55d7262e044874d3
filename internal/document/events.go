package document

import (
	"github.com/DoyleJ11/opsboard-relay/internal/graph"
	"github.com/DoyleJ11/opsboard-relay/pkg/types"
)

const (
	EventNodesUpdate   = types.EventNodesUpdate
	EventGraph3DUpdate = types.EventGraph3DUpdate
	EventConfigUpdate  = types.EventConfigUpdate
)

// Event is a named payload ready to be published on a board topic.
type Event struct {
	Name string
	Data any
}

type NodesPayload struct {
	BoardID string    `json:"boardId"`
	Nodes   *[]Object `json:"nodes,omitempty"`
	Edges   *[]Object `json:"edges,omitempty"`
	Paths   *[]Object `json:"paths,omitempty"`
}

type Graph3DPayload struct {
	BoardID string       `json:"boardId"`
	Nodes   []graph.Node `json:"nodes"`
	Edges   []graph.Edge `json:"edges"`
}

// Events are the broadcasts for the fields of p as applied to b. Only fields
// that were present produce output.
func (p BoardPatch) Events(b Board) []Event {
	var out []Event
	if p.Nodes != nil || p.Edges != nil || p.Paths != nil {
		np := NodesPayload{BoardID: b.ID}
		if p.Nodes != nil {
			np.Nodes = &b.Nodes
		}
		if p.Edges != nil {
			np.Edges = &b.Edges
		}
		if p.Paths != nil {
			np.Paths = &b.Paths
		}
		out = append(out, Event{Name: EventNodesUpdate, Data: np})
	}
	if p.Graph3D != nil {
		out = append(out, Event{Name: EventGraph3DUpdate, Data: Graph3DPayload{
			BoardID: b.ID,
			Nodes:   b.Graph3D.Nodes,
			Edges:   b.Graph3D.Edges,
		}})
	}
	return out
}

// SnapshotEvents is what a joining connection receives: every field of b.
func SnapshotEvents(b Board) []Event {
	return BoardPatch{Nodes: &b.Nodes, Edges: &b.Edges, Paths: &b.Paths, Graph3D: &b.Graph3D}.Events(b)
}
