package hub

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/opsboard-relay/internal/board"
	"github.com/DoyleJ11/opsboard-relay/internal/document"
	"github.com/DoyleJ11/opsboard-relay/internal/pubsub"
)

func newTestHub(t *testing.T) (*Hub, *pubsub.Bus) {
	t.Helper()
	bus := pubsub.New(nil, nil)
	h := NewHub(context.Background(), bus, nil, nil)
	t.Cleanup(h.Shutdown)
	return h, bus
}

func TestHub_Ensure_Get_SamePointer(t *testing.T) {
	h, _ := newTestHub(t)
	reply := make(chan *board.Board, 1)

	h.Inbox() <- EnsureBoard{ID: "ops", Reply: reply}
	b1 := <-reply

	h.Inbox() <- GetBoard{ID: "ops", Reply: reply}
	b2 := <-reply

	if b1 == nil || b2 == nil || b1 != b2 {
		t.Fatalf("expected same board pointer")
	}

	h.Inbox() <- GetBoard{ID: "missing", Reply: reply}
	assert.Nil(t, <-reply)
}

func TestHub_UnknownBoardIsEmptyNotError(t *testing.T) {
	h, _ := newTestHub(t)
	ctx := context.Background()

	b, err := h.Snapshot(ctx, "never-seen")
	require.NoError(t, err)
	assert.Equal(t, document.NewBoard("never-seen"), b)

	stats, err := h.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"never-seen"}, stats.BoardIDs)
}

func TestHub_ReplaceThenJoinSeesLatest(t *testing.T) {
	h, bus := newTestHub(t)
	ctx := context.Background()

	nodes := []document.Object{{"id": "n1"}}
	_, err := h.Replace(ctx, "x", document.BoardPatch{Nodes: &nodes}, "")
	require.NoError(t, err)

	out := make(chan []byte, 4)
	bus.Register("late", out)
	got, err := h.Join(ctx, "x", "late")
	require.NoError(t, err)
	assert.Len(t, got.Nodes, 1)
	assert.Equal(t, 1, got.Version)

	var f pubsub.Frame
	require.NoError(t, json.Unmarshal(<-out, &f))
	assert.Equal(t, document.EventNodesUpdate, f.Event)
}

func TestHub_BoardsAreIndependent(t *testing.T) {
	h, _ := newTestHub(t)
	ctx := context.Background()

	edges := []document.Object{{"id": "e"}}
	_, err := h.Replace(ctx, "a", document.BoardPatch{Edges: &edges}, "")
	require.NoError(t, err)

	b, err := h.Snapshot(ctx, "b")
	require.NoError(t, err)
	assert.Empty(t, b.Edges)
}

func TestHub_GameConfigBroadcastsToEveryone(t *testing.T) {
	h, bus := newTestHub(t)
	ctx := context.Background()
	out := make(chan []byte, 4)
	bus.Register("c1", out)

	p, err := document.ParseGameConfigPatch([]byte(`{"maps":[{"id":"dust"}]}`))
	require.NoError(t, err)
	cfg, err := h.ReplaceGameConfig(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Version)

	select {
	case raw := <-out:
		var f pubsub.Frame
		require.NoError(t, json.Unmarshal(raw, &f))
		assert.Equal(t, document.EventConfigUpdate, f.Event)
	case <-time.After(time.Second):
		t.Fatalf("no config_update")
	}

	got, err := h.GameConfig(ctx)
	require.NoError(t, err)
	assert.Len(t, got.Maps, 1)
}

func TestHub_ClosedHubRejects(t *testing.T) {
	h := NewHub(context.Background(), nil, nil, nil)
	h.Shutdown()
	h.Shutdown()

	_, err := h.Snapshot(context.Background(), "x")
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("want ErrClosed, got %v", err)
	}
}
