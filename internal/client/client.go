package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/DoyleJ11/opsboard-relay/internal/document"
	"github.com/DoyleJ11/opsboard-relay/internal/graph"
	"github.com/DoyleJ11/opsboard-relay/pkg/types"
)

// Client talks to a relay over its HTTP and websocket surfaces.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// BoardResult is a board as returned by PUT, with the fields it refused.
type BoardResult struct {
	document.Board
	Rejected []string `json:"rejected,omitempty"`
}

func (c *Client) boardURL(id string) string {
	return fmt.Sprintf("%s/boards/%s", c.baseURL, url.PathEscape(id))
}

func (c *Client) GetBoard(ctx context.Context, id string) (document.Board, error) {
	var b document.Board
	err := c.do(ctx, http.MethodGet, c.boardURL(id), nil, &b)
	return b, err
}

// PutBoard sends a field-level replace. body is marshalled as is, so only
// the keys it carries are replaced.
func (c *Client) PutBoard(ctx context.Context, id string, body any) (BoardResult, error) {
	var res BoardResult
	err := c.do(ctx, http.MethodPut, c.boardURL(id), body, &res)
	return res, err
}

func (c *Client) PutGraph3D(ctx context.Context, id string, g graph.Graph) (BoardResult, error) {
	return c.PutBoard(ctx, id, map[string]graph.Graph{"graph3d": g.Clone()})
}

func (c *Client) do(ctx context.Context, method, url string, body, out any) error {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf(
			"relay %s %s: status=%d body=%s",
			method,
			url,
			resp.StatusCode,
			strings.TrimSpace(string(b)),
		)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Subscription is a websocket joined to one board.
type Subscription struct {
	conn   *websocket.Conn
	events chan types.Envelope
	done   chan struct{}
	closed chan struct{}
	once   sync.Once
	err    error
}

// Subscribe dials /ws and joins boardID. The snapshot frames arrive first on
// Events.
func (c *Client) Subscribe(ctx context.Context, boardID string) (*Subscription, error) {
	wsURL := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}
	s := &Subscription{
		conn:   conn,
		events: make(chan types.Envelope, 16),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}
	if err := s.Send(ctx, types.EventJoinBoard, types.JoinBoard{BoardID: boardID}); err != nil {
		conn.Close(websocket.StatusInternalError, "join failed")
		return nil, err
	}
	go s.readLoop()
	return s, nil
}

func (s *Subscription) readLoop() {
	defer close(s.done)
	defer close(s.events)
	for {
		_, raw, err := s.conn.Read(context.Background())
		if err != nil {
			s.err = err
			return
		}
		var env types.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}
		select {
		case s.events <- env:
		case <-s.closed:
			return
		}
	}
}

// Events is closed when the connection ends; Err then reports why.
func (s *Subscription) Events() <-chan types.Envelope { return s.events }

func (s *Subscription) Err() error {
	<-s.done
	return s.err
}

func (s *Subscription) Send(ctx context.Context, event string, data any) error {
	raw, err := json.Marshal(struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}{event, data})
	if err != nil {
		return err
	}
	return s.conn.Write(ctx, websocket.MessageText, raw)
}

func (s *Subscription) Close() error {
	s.once.Do(func() { close(s.closed) })
	return s.conn.Close(websocket.StatusNormalClosure, "")
}
