package layout

import (
	"math"

	"github.com/DoyleJ11/opsboard-relay/internal/graph"
)

// Limits caps how many children a parent of each tier accepts. A value of
// zero or less means unlimited.
type Limits struct {
	MaxNodesPerRouter int  `yaml:"max_nodes_per_router" json:"maxNodesPerRouter"`
	MaxRoutersPerHub  int  `yaml:"max_routers_per_hub" json:"maxRoutersPerHub"`
	MaxHubsPerGame    int  `yaml:"max_hubs_per_game" json:"maxHubsPerGame"`
	TagMatching       bool `yaml:"tag_matching" json:"tagMatching"`
}

func DefaultLimits() Limits {
	return Limits{MaxNodesPerRouter: 8, MaxRoutersPerHub: 6, MaxHubsPerGame: 4}
}

// capacity is the limit applying to a parent of the given tier.
func (l Limits) capacity(parent graph.NodeType) int {
	switch parent {
	case graph.TypeRouter:
		return l.MaxNodesPerRouter
	case graph.TypeHub:
		return l.MaxRoutersPerHub
	case graph.TypeGame:
		return l.MaxHubsPerGame
	}
	return 0
}

// Group is one placement unit: a parent and the children laid out around it.
// An empty ParentID marks the virtual group holding a tier's orphans.
type Group struct {
	Tier     graph.NodeType `json:"tier"`
	ParentID string         `json:"parentId,omitempty"`
	Children []string       `json:"children"`
}

// Plan is the outcome of parent inference over a graph.
type Plan struct {
	// Parent maps child id to parent id for every assigned child.
	Parent map[string]string
	// Inferred lists the (child, parent) pairs that have no edge yet, in
	// assignment order.
	Inferred [][2]string
	Orphans  []string
	Groups   []Group
	// Anchor is the id orphans are grouped around, or "" for the origin.
	Anchor string
}

// Assign infers one parent per child tier by tier. Existing edges to a node of
// the tier directly above are honored first and count against that parent's
// capacity. Remaining children go to the nearest parent with capacity left,
// sharing a tag when tag matching is on. Ties keep the earlier parent.
func Assign(g graph.Graph, limits Limits) Plan {
	plan := Plan{Parent: map[string]string{}, Anchor: anchor(g)}

	for rank := len(graph.TierOrder) - 2; rank >= 0; rank-- {
		childTier := graph.TierOrder[rank]
		parentTier := graph.TierOrder[rank+1]
		children := ofTier(g, childTier)
		parents := ofTier(g, parentTier)
		if len(children) == 0 {
			continue
		}
		limit := limits.capacity(parentTier)
		load := make(map[string]int, len(parents))
		isParent := make(map[string]bool, len(parents))
		for _, p := range parents {
			isParent[p.ID] = true
		}

		for _, c := range children {
			for _, e := range g.Edges {
				if !e.Touches(c.ID) {
					continue
				}
				if other := e.Other(c.ID); isParent[other] {
					plan.Parent[c.ID] = other
					load[other]++
					break
				}
			}
		}

		for _, c := range children {
			if _, ok := plan.Parent[c.ID]; ok {
				continue
			}
			best, bestDist := "", math.Inf(1)
			for _, p := range parents {
				if limit > 0 && load[p.ID] >= limit {
					continue
				}
				if limits.TagMatching && !c.SharesTag(p) {
					continue
				}
				if d := c.Position.Distance(p.Position); d < bestDist {
					best, bestDist = p.ID, d
				}
			}
			if best == "" {
				plan.Orphans = append(plan.Orphans, c.ID)
				continue
			}
			plan.Parent[c.ID] = best
			plan.Inferred = append(plan.Inferred, [2]string{c.ID, best})
			load[best]++
		}

		for _, p := range parents {
			var kids []string
			for _, c := range children {
				if plan.Parent[c.ID] == p.ID {
					kids = append(kids, c.ID)
				}
			}
			if len(kids) > 0 {
				plan.Groups = append(plan.Groups, Group{Tier: childTier, ParentID: p.ID, Children: kids})
			}
		}
		var orphans []string
		for _, c := range children {
			if _, ok := plan.Parent[c.ID]; !ok {
				orphans = append(orphans, c.ID)
			}
		}
		if len(orphans) > 0 {
			plan.Groups = append(plan.Groups, Group{Tier: childTier, Children: orphans})
		}
	}
	return plan
}

// anchor is the first node of the highest tier present, if that tier sits
// above the bottom one.
func anchor(g graph.Graph) string {
	for rank := len(graph.TierOrder) - 1; rank > 0; rank-- {
		if ns := ofTier(g, graph.TierOrder[rank]); len(ns) > 0 {
			return ns[0].ID
		}
	}
	return ""
}

func ofTier(g graph.Graph, t graph.NodeType) []graph.Node {
	var out []graph.Node
	for _, n := range g.Nodes {
		if n.Kind() == t {
			out = append(out, n)
		}
	}
	return out
}
