package hub

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/DoyleJ11/opsboard-relay/internal/board"
	"github.com/DoyleJ11/opsboard-relay/internal/document"
)

var ErrClosed = errors.New("hub is shut down")

// Bus is what the hub and its boards publish through.
type Bus interface {
	board.Publisher
	PublishAll(event string, data any) (int, error)
}

type Observer interface {
	board.Observer
	BoardCreated()
}

type HubMsg interface{ isHubMsg() }

type GetBoard struct {
	ID    string
	Reply chan *board.Board
}

// EnsureBoard creates the board on first reference.
type EnsureBoard struct {
	ID    string
	Reply chan *board.Board
}

type GetConfig struct {
	Reply chan document.GameConfig
}

type ReplaceConfig struct {
	Patch document.GameConfigPatch
	Reply chan document.GameConfig
}

type GetStats struct {
	Reply chan Stats
}

type ShutdownHub struct{}

func (GetBoard) isHubMsg()      {}
func (EnsureBoard) isHubMsg()   {}
func (GetConfig) isHubMsg()     {}
func (ReplaceConfig) isHubMsg() {}
func (GetStats) isHubMsg()      {}
func (ShutdownHub) isHubMsg()   {}

type Stats struct {
	Boards   int      `json:"boards"`
	BoardIDs []string `json:"boardIds"`
	Version  int      `json:"configVersion"`
}

// Hub owns the board registry and the game config singleton. Boards are
// independent actors; the hub only hands out references to them.
type Hub struct {
	inbox  chan HubMsg
	boards map[string]*board.Board
	config document.GameConfig
	bus    Bus
	obs    Observer
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(parent context.Context, bus Bus, obs Observer, log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if log == nil {
		log = zap.NewNop()
	}
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		boards: make(map[string]*board.Board),
		config: document.NewGameConfig(),
		bus:    bus,
		obs:    obs,
		log:    log.Named("hub"),
		ctx:    ctx,
		cancel: cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case GetBoard:
				msg.Reply <- h.boards[msg.ID] // may be nil

			case EnsureBoard:
				if b := h.boards[msg.ID]; b != nil {
					msg.Reply <- b
					break
				}
				b := board.New(h.ctx, msg.ID, h.bus, h.obs, h.log)
				h.boards[msg.ID] = b
				if h.obs != nil {
					h.obs.BoardCreated()
				}
				h.log.Info("board created", zap.String("board", msg.ID))
				msg.Reply <- b

			case GetConfig:
				msg.Reply <- h.config.Clone()

			case ReplaceConfig:
				h.config.Apply(msg.Patch)
				snap := h.config.Clone()
				if !msg.Patch.Empty() && h.bus != nil {
					n, err := h.bus.PublishAll(document.EventConfigUpdate, snap)
					if err != nil {
						h.log.Error("encode config_update", zap.Error(err))
					} else if h.obs != nil {
						h.obs.Published(document.EventConfigUpdate, n)
					}
				}
				msg.Reply <- snap

			case GetStats:
				ids := make([]string, 0, len(h.boards))
				for id := range h.boards {
					ids = append(ids, id)
				}
				sort.Strings(ids)
				msg.Reply <- Stats{Boards: len(ids), BoardIDs: ids, Version: h.config.Version}

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) shutdown() {
	for _, b := range h.boards {
		select {
		case b.Inbox() <- board.Shutdown{}:
		default:
		}
	}
	clear(h.boards)
	h.cancel()
}

// Shutdown stops the hub and every board. It is safe to call twice.
func (h *Hub) Shutdown() {
	select {
	case h.inbox <- ShutdownHub{}:
	case <-h.ctx.Done():
	}
	<-h.ctx.Done()
}

func (h *Hub) Done() <-chan struct{} { return h.ctx.Done() }

// request posts msg to inbox and waits for one value on reply.
func request[T any, M any](ctx context.Context, done <-chan struct{}, inbox chan<- M, msg M, reply <-chan T) (T, error) {
	var zero T
	select {
	case inbox <- msg:
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-done:
		return zero, ErrClosed
	}
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-done:
		return zero, ErrClosed
	}
}

func (h *Hub) ensure(ctx context.Context, id string) (*board.Board, error) {
	reply := make(chan *board.Board, 1)
	return request(ctx, h.ctx.Done(), h.inbox, HubMsg(EnsureBoard{ID: id, Reply: reply}), reply)
}

// Snapshot returns the board, creating an empty one for an unknown id.
func (h *Hub) Snapshot(ctx context.Context, id string) (document.Board, error) {
	b, err := h.ensure(ctx, id)
	if err != nil {
		return document.Board{}, err
	}
	reply := make(chan document.Board, 1)
	return request(ctx, b.Done(), b.Inbox(), board.Msg(board.GetState{Reply: reply}), reply)
}

// Join subscribes connID to the board and pushes it a snapshot.
func (h *Hub) Join(ctx context.Context, id, connID string) (document.Board, error) {
	b, err := h.ensure(ctx, id)
	if err != nil {
		return document.Board{}, err
	}
	reply := make(chan document.Board, 1)
	return request(ctx, b.Done(), b.Inbox(), board.Msg(board.Join{ConnID: connID, Reply: reply}), reply)
}

// Replace applies the fields present in patch and broadcasts them to the
// board's subscribers except origin. An empty origin means the write did not
// come from a connection, so every subscriber hears about it.
func (h *Hub) Replace(ctx context.Context, id string, patch document.BoardPatch, origin string) (document.Board, error) {
	b, err := h.ensure(ctx, id)
	if err != nil {
		return document.Board{}, err
	}
	source := "ws"
	if origin == "" {
		source = "http"
	}
	reply := make(chan document.Board, 1)
	msg := board.Update{Patch: patch, Origin: origin, Source: source, Reply: reply}
	return request(ctx, b.Done(), b.Inbox(), board.Msg(msg), reply)
}

func (h *Hub) GameConfig(ctx context.Context) (document.GameConfig, error) {
	reply := make(chan document.GameConfig, 1)
	return request(ctx, h.ctx.Done(), h.inbox, HubMsg(GetConfig{Reply: reply}), reply)
}

// ReplaceGameConfig applies the patch and broadcasts config_update to every
// connection.
func (h *Hub) ReplaceGameConfig(ctx context.Context, patch document.GameConfigPatch) (document.GameConfig, error) {
	reply := make(chan document.GameConfig, 1)
	return request(ctx, h.ctx.Done(), h.inbox, HubMsg(ReplaceConfig{Patch: patch, Reply: reply}), reply)
}

func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	reply := make(chan Stats, 1)
	return request(ctx, h.ctx.Done(), h.inbox, HubMsg(GetStats{Reply: reply}), reply)
}
