package layout

import (
	"github.com/DoyleJ11/opsboard-relay/internal/graph"
)

// Radii are the sphere radii used for each child tier around its parent.
type Radii struct {
	Hub    float64 `yaml:"hub" json:"hub"`
	Router float64 `yaml:"router" json:"router"`
	Node   float64 `yaml:"node" json:"node"`
}

func DefaultRadii() Radii { return Radii{Hub: 12, Router: 6, Node: 3} }

func (r Radii) forTier(t graph.NodeType) float64 {
	d := DefaultRadii()
	switch t {
	case graph.TypeHub:
		return pick(r.Hub, d.Hub)
	case graph.TypeRouter:
		return pick(r.Router, d.Router)
	default:
		return pick(r.Node, d.Node)
	}
}

func pick(v, fallback float64) float64 {
	if v > 0 {
		return v
	}
	return fallback
}

// Layout computes new positions for every non-top-tier node. Groups are
// placed top-down, so routers orbit where their hub ends up rather than
// where it started.
func Layout(g graph.Graph, limits Limits, radii Radii) map[string]graph.Vec3 {
	plan := Assign(g, limits)
	pos := make(map[string]graph.Vec3, len(g.Nodes))
	for _, n := range g.Nodes {
		pos[n.ID] = n.Position
	}
	out := make(map[string]graph.Vec3)

	for _, grp := range plan.Groups {
		center := graph.Vec3{}
		switch {
		case grp.ParentID != "":
			center = pos[grp.ParentID]
		case plan.Anchor != "":
			if a, ok := g.Node(plan.Anchor); ok && a.Kind().Rank() > grp.Tier.Rank() {
				center = pos[plan.Anchor]
			}
		}
		points := FibonacciSphere(len(grp.Children), radii.forTier(grp.Tier), center)
		for i, id := range grp.Children {
			pos[id] = points[i]
			out[id] = points[i]
		}
	}
	return out
}

// AutoWire returns the (child, parent) pairs that would gain an edge.
func AutoWire(g graph.Graph, limits Limits) [][2]string {
	return Assign(g, limits).Inferred
}

// ApplyAutoWire connects every inferred pair through the editor as a single
// undo entry and returns the new edge ids.
func ApplyAutoWire(e *graph.Editor, limits Limits) ([]string, error) {
	return e.Connect("autoWire", AutoWire(e.Graph(), limits))
}

// ApplyLayout moves nodes to their computed positions as a single undo entry.
func ApplyLayout(e *graph.Editor, limits Limits, radii Radii) error {
	g := e.Graph()
	moved := Layout(g, limits, radii)
	ids := make([]string, 0, len(moved))
	to := make([]graph.Vec3, 0, len(moved))
	for _, n := range g.Nodes {
		if p, ok := moved[n.ID]; ok {
			ids = append(ids, n.ID)
			to = append(to, p)
		}
	}
	return e.MoveTo(ids, to)
}
