package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/opsboard-relay/internal/audit"
	"github.com/DoyleJ11/opsboard-relay/internal/document"
	"github.com/DoyleJ11/opsboard-relay/internal/hub"
	"github.com/DoyleJ11/opsboard-relay/internal/presence"
	"github.com/DoyleJ11/opsboard-relay/internal/protocol"
	"github.com/DoyleJ11/opsboard-relay/internal/pubsub"
	"github.com/DoyleJ11/opsboard-relay/pkg/types"
)

type countObs struct{ open, closed chan struct{} }

func (c countObs) ConnOpened() { c.open <- struct{}{} }
func (c countObs) ConnClosed() { c.closed <- struct{}{} }

func newServer(t *testing.T, obs ConnObserver) (*httptest.Server, *hub.Hub) {
	t.Helper()
	return newServerWith(t, Options{ReadTimeout: 5 * time.Second}, obs)
}

func newServerWith(t *testing.T, opts Options, obs ConnObserver) (*httptest.Server, *hub.Hub) {
	t.Helper()
	bus := pubsub.New(nil, nil)
	hb := hub.NewHub(context.Background(), bus, nil, nil)
	p := protocol.NewHandler(hb, bus, presence.NewRegistry(), audit.New(0), nil, nil)
	srv := httptest.NewServer(Handler(p, opts, obs, nil))
	t.Cleanup(func() {
		srv.Close()
		hb.Shutdown()
	})
	return srv, hb
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close(websocket.StatusNormalClosure, "") })
	return c
}

func write(t *testing.T, c *websocket.Conn, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"event": event, "data": data})
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Write(ctx, websocket.MessageText, raw))
}

func read(t *testing.T, c *websocket.Conn) types.Envelope {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, raw, err := c.Read(ctx)
	require.NoError(t, err)
	var env types.Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	return env
}

func TestHandler_RoundTrip(t *testing.T) {
	srv, hb := newServer(t, nil)
	a, b := dial(t, srv), dial(t, srv)

	write(t, a, types.EventJoinBoard, map[string]string{"boardId": "x"})
	assert.Equal(t, types.EventNodesUpdate, read(t, a).Event)
	assert.Equal(t, types.EventGraph3DUpdate, read(t, a).Event)

	write(t, b, types.EventJoinBoard, map[string]string{"boardId": "x"})
	read(t, b)
	read(t, b)

	write(t, a, types.EventNodesUpdate, map[string]any{"boardId": "x", "nodes": []any{map[string]any{"id": "n1"}}})
	env := read(t, b)
	assert.Equal(t, types.EventNodesUpdate, env.Event)
	assert.Contains(t, string(env.Data), `"n1"`)

	got, err := hb.Snapshot(context.Background(), "x")
	require.NoError(t, err)
	assert.Len(t, got.Nodes, 1)
}

func TestHandler_BadFrameGetsErrorEvent(t *testing.T) {
	srv, _ := newServer(t, nil)
	a := dial(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, a.Write(ctx, websocket.MessageText, []byte(`not json`)))

	env := read(t, a)
	assert.Equal(t, types.EventError, env.Event)

	// The connection survives a bad frame.
	write(t, a, types.EventJoinBoard, map[string]string{"boardId": "y"})
	assert.Equal(t, types.EventNodesUpdate, read(t, a).Event)
}

func TestHandler_CountsConnections(t *testing.T) {
	obs := countObs{open: make(chan struct{}, 1), closed: make(chan struct{}, 1)}
	srv, _ := newServer(t, obs)
	c := dial(t, srv)

	select {
	case <-obs.open:
	case <-time.After(time.Second):
		t.Fatalf("open not observed")
	}

	c.Close(websocket.StatusNormalClosure, "")
	select {
	case <-obs.closed:
	case <-time.After(2 * time.Second):
		t.Fatalf("close not observed")
	}
}

// readAll drains c in the background, the way a browser keeps reading and
// answering pings while its user is idle.
func readAll(c *websocket.Conn) <-chan types.Envelope {
	out := make(chan types.Envelope, 16)
	go func() {
		defer close(out)
		for {
			_, raw, err := c.Read(context.Background())
			if err != nil {
				return
			}
			var env types.Envelope
			if json.Unmarshal(raw, &env) == nil {
				out <- env
			}
		}
	}()
	return out
}

func recvEvent(t *testing.T, frames <-chan types.Envelope, event string) types.Envelope {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case env, ok := <-frames:
			if !ok {
				t.Fatalf("connection closed while waiting for %s", event)
			}
			if env.Event == event {
				return env
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", event)
		}
	}
}

func TestHandler_QuietSubscriberOutlivesReadTimeout(t *testing.T) {
	srv, hb := newServerWith(t, Options{ReadTimeout: 300 * time.Millisecond}, nil)
	c := dial(t, srv)
	frames := readAll(c)

	write(t, c, types.EventJoinBoard, map[string]string{"boardId": "x"})
	recvEvent(t, frames, types.EventGraph3DUpdate)

	time.Sleep(900 * time.Millisecond)

	nodes := []document.Object{{"id": "n1"}}
	_, err := hb.Replace(context.Background(), "x", document.BoardPatch{Nodes: &nodes}, "")
	require.NoError(t, err)

	env := recvEvent(t, frames, types.EventNodesUpdate)
	assert.Contains(t, string(env.Data), `"n1"`)
}

func TestHandler_UnansweredPingsCloseTheConnection(t *testing.T) {
	obs := countObs{open: make(chan struct{}, 1), closed: make(chan struct{}, 1)}
	srv, _ := newServerWith(t, Options{ReadTimeout: 200 * time.Millisecond}, obs)
	// Never reading means pongs are never sent.
	dial(t, srv)
	<-obs.open

	select {
	case <-obs.closed:
	case <-time.After(2 * time.Second):
		t.Fatalf("silent peer was not dropped")
	}
}
