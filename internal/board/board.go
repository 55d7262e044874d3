package board

import (
	"context"

	"go.uber.org/zap"

	"github.com/DoyleJ11/opsboard-relay/internal/document"
)

// Publisher is the slice of the pub/sub bus a board writes to.
type Publisher interface {
	Join(connID, topic string) bool
	Send(connID, event string, data any) (bool, error)
	Publish(topic, event string, data any, exceptConnID string) (int, error)
}

// Observer receives counts for metrics. A nil Observer is allowed.
type Observer interface {
	Published(event string, n int)
	BoardUpdated(source string)
}

type Msg interface{ isBoardMsg() }

// Join subscribes the connection and pushes the current snapshot to it in
// the same step, so no update can slip between the two.
type Join struct {
	ConnID string
	Reply  chan document.Board
}

func (Join) isBoardMsg() {}

// Update applies a patch and publishes it to every subscriber but Origin.
type Update struct {
	Patch  document.BoardPatch
	Origin string
	Source string
	Reply  chan document.Board
}

func (Update) isBoardMsg() {}

type GetState struct {
	Reply chan document.Board
}

func (GetState) isBoardMsg() {}

type Shutdown struct{}

func (Shutdown) isBoardMsg() {}

// Board is the single writer for one board id. All reads and writes go
// through its inbox, so readers never see a half-applied patch.
type Board struct {
	id     string
	inbox  chan Msg
	state  document.Board
	bus    Publisher
	obs    Observer
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func New(parent context.Context, id string, bus Publisher, obs Observer, log *zap.Logger) *Board {
	ctx, cancel := context.WithCancel(parent)
	if log == nil {
		log = zap.NewNop()
	}
	b := &Board{
		id:     id,
		inbox:  make(chan Msg, 64),
		state:  document.NewBoard(id),
		bus:    bus,
		obs:    obs,
		log:    log.With(zap.String("board", id)),
		ctx:    ctx,
		cancel: cancel,
	}
	go b.loop()
	return b
}

func (b *Board) ID() string { return b.id }

// Inbox is exposed for the hub and for tests.
func (b *Board) Inbox() chan<- Msg { return b.inbox }

// Done is closed once the board stops accepting messages.
func (b *Board) Done() <-chan struct{} { return b.ctx.Done() }

func (b *Board) loop() {
	for {
		select {
		case <-b.ctx.Done():
			return

		case m := <-b.inbox:
			switch msg := m.(type) {
			case Join:
				if b.bus != nil && b.bus.Join(msg.ConnID, b.state.ID) {
					for _, ev := range document.SnapshotEvents(b.state) {
						if _, err := b.bus.Send(msg.ConnID, ev.Name, ev.Data); err != nil {
							b.log.Error("encode snapshot", zap.String("event", ev.Name), zap.Error(err))
						}
					}
				}
				msg.Reply <- b.state.Clone()

			case Update:
				if msg.Patch.Empty() {
					msg.Reply <- b.state.Clone()
					break
				}
				b.state.Apply(msg.Patch)
				b.publish(msg.Patch, msg.Origin)
				if b.obs != nil {
					b.obs.BoardUpdated(msg.Source)
				}
				b.log.Debug("board updated",
					zap.Strings("fields", msg.Patch.Fields()),
					zap.Int("version", b.state.Version),
					zap.String("origin", msg.Origin),
				)
				msg.Reply <- b.state.Clone()

			case GetState:
				msg.Reply <- b.state.Clone()

			case Shutdown:
				b.cancel()
				return
			}
		}
	}
}

func (b *Board) publish(p document.BoardPatch, origin string) {
	if b.bus == nil {
		return
	}
	for _, ev := range p.Events(b.state) {
		n, err := b.bus.Publish(b.state.ID, ev.Name, ev.Data, origin)
		if err != nil {
			b.log.Error("encode broadcast", zap.String("event", ev.Name), zap.Error(err))
			continue
		}
		if b.obs != nil {
			b.obs.Published(ev.Name, n)
		}
	}
}
