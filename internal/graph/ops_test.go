package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_CompositeFailureLeavesGraphUntouched(t *testing.T) {
	g := newFixtureEditor().Graph()
	op := Composite{Label: "broken", Ops: []Op{
		RemoveEdges{Edges: []Placed[Edge]{{Index: 0, Value: g.Edges[0]}}},
		MoveNodes{IDs: []string{"ghost"}, From: []Vec3{{}}, To: []Vec3{{1, 1, 1}}},
	}}

	out, err := Apply(g, op)
	if !errors.Is(err, ErrUnknownNode) {
		t.Fatalf("want ErrUnknownNode, got %v", err)
	}
	assert.Equal(t, g, out)
	assert.Len(t, g.Edges, 4)
}

func TestOps_InvertRestores(t *testing.T) {
	base := newFixtureEditor().Graph()
	label := "x"

	cases := []struct {
		name string
		op   Op
	}{
		{"add nodes", AddNodes{Nodes: []Placed[Node]{{Index: 1, Value: Node{ID: "z"}}}}},
		{"remove nodes", RemoveNodes{
			Nodes: placedNodes(base, func(n Node) bool { return n.ID == "b" }),
			Edges: placedEdges(base, func(e Edge) bool { return e.Touches("b") }),
		}},
		{"move", MoveNodes{IDs: []string{"a"}, From: []Vec3{{0, 0, 0}}, To: []Vec3{{3, 3, 3}}}},
		{"update", UpdateNode{ID: "a", Patch: NodePatch{Label: &label}, Prev: NodePatch{Label: &base.Nodes[0].Label}}},
		{"add edges", AddEdges{Edges: []Placed[Edge]{{Index: 0, Value: Edge{ID: "bd", A: "b", B: "d"}}}}},
		{"remove edges", RemoveEdges{Edges: []Placed[Edge]{{Index: 2, Value: base.Edges[2]}}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next, err := Apply(base, tc.op)
			require.NoError(t, err)
			assert.NotEqual(t, base, next)

			back, err := Apply(next, tc.op.Invert())
			require.NoError(t, err)
			assert.Equal(t, base, back)
		})
	}
}

func TestAddEdges_RejectsDanglingEndpoint(t *testing.T) {
	g := newFixtureEditor().Graph()
	_, err := Apply(g, AddEdges{Edges: []Placed[Edge]{{Index: 0, Value: Edge{ID: "q", A: "a", B: "nope"}}}})
	if !errors.Is(err, ErrUnknownNode) {
		t.Fatalf("want ErrUnknownNode, got %v", err)
	}
}

func TestSanitize(t *testing.T) {
	g := Graph{
		Nodes: []Node{{ID: "a"}, {ID: "b"}},
		Edges: []Edge{
			{ID: "1", A: "a", B: "b"},
			{ID: "2", A: "b", B: "a"},
			{ID: "3", A: "a", B: "a"},
			{ID: "4", A: "a", B: "gone"},
		},
	}
	assert.Equal(t, 3, g.Sanitize())
	assert.Equal(t, []Edge{{ID: "1", A: "a", B: "b"}}, g.Edges)

	var empty Graph
	assert.Equal(t, 0, empty.Sanitize())
	assert.NotNil(t, empty.Nodes)
	assert.NotNil(t, empty.Edges)
}

func TestNodeType_Rank(t *testing.T) {
	cases := []struct {
		typ    NodeType
		rank   int
		parent NodeType
		hasPar bool
	}{
		{"", 0, TypeRouter, true},
		{TypeNode, 0, TypeRouter, true},
		{TypeRouter, 1, TypeHub, true},
		{TypeHub, 2, TypeGame, true},
		{TypeGame, 3, "", false},
		{"satellite", -1, "", false},
	}
	for _, tc := range cases {
		t.Run(string(tc.typ), func(t *testing.T) {
			assert.Equal(t, tc.rank, tc.typ.Rank())
			p, ok := tc.typ.ParentTier()
			assert.Equal(t, tc.hasPar, ok)
			assert.Equal(t, tc.parent, p)
		})
	}
}
