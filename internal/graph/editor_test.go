package graph

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seqIDs() func(string) string {
	n := 0
	return func(prefix string) string {
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}

// a-b-c triangle with a spur c-d.
func newFixtureEditor() *Editor {
	g := Graph{
		Nodes: []Node{
			{ID: "a", Label: "A", Position: Vec3{0, 0, 0}},
			{ID: "b", Label: "B", Position: Vec3{1, 0, 0}, Type: TypeRouter},
			{ID: "c", Label: "C", Position: Vec3{0, 1, 0}, Tags: []string{"eu"}},
			{ID: "d", Label: "D", Position: Vec3{0, 0, 1}},
		},
		Edges: []Edge{
			{ID: "ab", A: "a", B: "b"},
			{ID: "bc", A: "b", B: "c"},
			{ID: "ca", A: "c", B: "a"},
			{ID: "cd", A: "c", B: "d"},
		},
	}
	return NewEditor(g, WithIDGenerator(seqIDs()))
}

func TestEditor_RemoveNode_PrunesEveryTouchingEdge(t *testing.T) {
	for _, id := range []string{"a", "b", "c", "d"} {
		t.Run(id, func(t *testing.T) {
			e := newFixtureEditor()
			require.True(t, e.RemoveNode(id))

			g := e.Graph()
			assert.False(t, g.HasNode(id))
			for _, ed := range g.Edges {
				if ed.Touches(id) {
					t.Fatalf("edge %s still references removed node %s", ed.ID, id)
				}
			}
		})
	}
}

func TestEditor_RemoveNode_AbsentIsNoop(t *testing.T) {
	e := newFixtureEditor()
	before := e.Graph()

	assert.False(t, e.RemoveNode("nope"))
	assert.Equal(t, before, e.Graph())
	assert.False(t, e.CanUndo())
}

func TestEditor_UndoRedo_RoundTrip(t *testing.T) {
	e := newFixtureEditor()
	initial := e.Graph()

	x := e.AddNode("X", Vec3{5, 5, 5}, TypeHub, "")
	_, err := e.AddEdge(x, "d")
	require.NoError(t, err)
	require.NoError(t, e.UpdateNodePosition("a", Vec3{-1, -2, -3}))
	label, tags := "renamed", []string{"na", "eu"}
	require.NoError(t, e.UpdateNode("d", NodePatch{Label: &label, Tags: &tags}))
	_, err = e.SplitEdge("bc", Vec3{0.5, 0.5, 0})
	require.NoError(t, err)
	require.True(t, e.RemoveNodes("c", "a"))
	e.StartMoveNodes("b", x)
	e.MoveNodes([]string{"b", x}, Vec3{0.1, 0.2, 0.3})
	e.MoveNodes([]string{"b", x}, Vec3{1, 1, 1})
	e.EndMoveNodes("b", x)
	require.True(t, e.RemoveEdge("e_4"))

	// Gestures ending narrower than they moved, or moving nodes they did not
	// start with, still leave every move undoable.
	e.StartMoveNodes("b", "d")
	e.MoveNodes([]string{"b", "d"}, Vec3{1, 1, 1})
	e.EndMoveNodes("b")
	e.StartMoveNodes("b")
	e.MoveNodes([]string{"b", "d"}, Vec3{1, 1, 1})
	e.EndMoveNodes()

	final := e.Graph()
	undo, redo := e.History()
	require.Equal(t, 0, redo)

	for i := 0; i < undo; i++ {
		require.True(t, e.Undo(), "undo %d", i)
	}
	assert.Equal(t, initial, e.Graph())
	assert.False(t, e.Undo())

	for i := 0; i < undo; i++ {
		require.True(t, e.Redo(), "redo %d", i)
	}
	assert.Equal(t, final, e.Graph())
	assert.False(t, e.Redo())
}

func TestEditor_DragGesture_NothingEscapesHistory(t *testing.T) {
	tests := []struct {
		name  string
		start []string
		end   []string
		// wantB is where b sits once the gesture ends.
		wantB Vec3
	}{
		{"ended narrower", []string{"a", "b"}, []string{"a"}, Vec3{1, 0, 0}},
		{"touched mid-gesture", []string{"a"}, nil, Vec3{2, 1, 1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := newFixtureEditor()
			before := e.Graph()

			e.StartMoveNodes(tc.start...)
			e.MoveNodes([]string{"a", "b"}, Vec3{1, 1, 1})
			e.EndMoveNodes(tc.end...)

			b, _ := e.Graph().Node("b")
			assert.Equal(t, tc.wantB, b.Position)
			undo, _ := e.History()
			require.Equal(t, 1, undo)

			require.True(t, e.Undo())
			assert.Equal(t, before, e.Graph())
		})
	}
}

func TestEditor_AddNode_RegeneratesCollidingID(t *testing.T) {
	e := NewEditor(NewGraph(), WithIDGenerator(func(prefix string) string { return prefix + "same" }))
	first := e.AddNode("one", Vec3{}, TypeNode, "")
	second := e.AddNode("two", Vec3{}, TypeNode, "")

	assert.Equal(t, "n_same", first)
	assert.NotEqual(t, first, second)
	assert.Len(t, e.Graph().Nodes, 2)

	mid, err := e.SplitEdge("missing", Vec3{})
	assert.ErrorIs(t, err, ErrUnknownEdge)
	assert.Empty(t, mid)

	id, err := e.AddEdge(first, second)
	require.NoError(t, err)
	split, err := e.SplitEdge(id, Vec3{})
	require.NoError(t, err)
	g := e.Graph()
	assert.Len(t, g.Nodes, 3)
	require.Len(t, g.Edges, 2)
	assert.NotEqual(t, g.Edges[0].ID, g.Edges[1].ID)
	assert.True(t, g.HasEdge(first, split))
}

func TestEditor_SplitEdge_UndoIsAtomic(t *testing.T) {
	e := newFixtureEditor()
	before := e.Graph()

	mid, err := e.SplitEdge("ab", Midpoint(Vec3{0, 0, 0}, Vec3{1, 0, 0}))
	require.NoError(t, err)

	g := e.Graph()
	assert.True(t, g.HasNode(mid))
	assert.Equal(t, -1, g.EdgeIndex("ab"))
	assert.True(t, g.HasEdge("a", mid))
	assert.True(t, g.HasEdge(mid, "b"))
	undo, _ := e.History()
	assert.Equal(t, 1, undo)

	require.True(t, e.Undo())
	assert.Equal(t, before, e.Graph())
}

func TestEditor_DragGesture_IsOneEntry(t *testing.T) {
	e := newFixtureEditor()
	a0, _ := e.Graph().Node("a")
	b0, _ := e.Graph().Node("b")

	e.StartMoveNodes("a", "b")
	e.MoveNodes([]string{"a", "b"}, Vec3{1, 0, 0})
	e.MoveNodes([]string{"a", "b"}, Vec3{0, 2, 0})
	e.EndMoveNodes("a", "b")

	undo, redo := e.History()
	assert.Equal(t, 1, undo)
	assert.Equal(t, 0, redo)

	a1, _ := e.Graph().Node("a")
	assert.Equal(t, Vec3{1, 2, 0}, a1.Position)

	require.True(t, e.Undo())
	a2, _ := e.Graph().Node("a")
	b2, _ := e.Graph().Node("b")
	assert.Equal(t, a0.Position, a2.Position)
	assert.Equal(t, b0.Position, b2.Position)
}

func TestEditor_DragWithoutMovement_RecordsNothing(t *testing.T) {
	e := newFixtureEditor()
	e.StartMoveNodes("a")
	e.EndMoveNodes("a")
	assert.False(t, e.CanUndo())
}

func TestEditor_AddEdge_Rejections(t *testing.T) {
	cases := []struct {
		name string
		a, b string
		want error
	}{
		{name: "self loop", a: "a", b: "a", want: ErrSelfLoop},
		{name: "unknown endpoint", a: "a", b: "zz", want: ErrUnknownNode},
		{name: "parallel edge", a: "a", b: "b", want: ErrDuplicateEdge},
		{name: "parallel edge reversed", a: "b", b: "a", want: ErrDuplicateEdge},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newFixtureEditor()
			before := e.Graph()
			_, err := e.AddEdge(tc.a, tc.b)
			if !errors.Is(err, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, err)
			}
			assert.Equal(t, before, e.Graph())
			assert.False(t, e.CanUndo())
		})
	}
}

func TestEditor_NewActionClearsRedo(t *testing.T) {
	e := newFixtureEditor()
	e.AddNode("", Vec3{}, "", "")
	require.True(t, e.Undo())
	require.True(t, e.CanRedo())

	e.AddNode("", Vec3{}, "", "")
	assert.False(t, e.CanRedo())
}

func TestEditor_UpdateNode_InverseTouchesOnlyPatchedFields(t *testing.T) {
	e := newFixtureEditor()
	color := "#ff0000"
	require.NoError(t, e.UpdateNode("c", NodePatch{Color: &color}))

	// A later position change must survive undoing the color patch.
	e.graph.Nodes[e.graph.NodeIndex("c")].Position = Vec3{9, 9, 9}
	require.True(t, e.Undo())

	c, _ := e.Graph().Node("c")
	assert.Equal(t, "", c.Color)
	assert.Equal(t, Vec3{9, 9, 9}, c.Position)
	assert.Equal(t, []string{"eu"}, c.Tags)
}

func TestEditor_Selection(t *testing.T) {
	e := newFixtureEditor()
	e.Select("a", "b", "missing", "a")
	assert.Equal(t, []string{"a", "b"}, e.Selected())

	e.ToggleSelect("b")
	e.ToggleSelect("c")
	assert.Equal(t, []string{"a", "c"}, e.Selected())

	require.True(t, e.RemoveSelected())
	assert.Empty(t, e.Selected())
	assert.False(t, e.Graph().HasNode("a"))
	assert.False(t, e.Graph().HasNode("c"))
}

func TestEditor_ChangeHookAndLoad(t *testing.T) {
	var pushed []Graph
	e := NewEditor(NewGraph(), WithIDGenerator(seqIDs()), WithChangeHook(func(g Graph) { pushed = append(pushed, g) }))

	id := e.AddNode("one", Vec3{}, TypeNode, "")
	require.Len(t, pushed, 1)
	assert.True(t, pushed[0].HasNode(id))

	e.Select(id)
	e.Load(NewGraph())
	assert.False(t, e.CanUndo())
	assert.Empty(t, e.Selected())
	assert.Len(t, pushed, 1, "remote loads are not echoed")
}

func TestEditor_Connect_SkipsInvalidPairs(t *testing.T) {
	e := newFixtureEditor()
	ids, err := e.Connect("autoWire", [][2]string{{"a", "d"}, {"a", "b"}, {"d", "d"}, {"b", "d"}, {"d", "b"}})
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	undo, _ := e.History()
	assert.Equal(t, 1, undo)
	require.True(t, e.Undo())
	assert.False(t, e.Graph().HasEdge("a", "d"))
}
