package protocol

import (
	"context"
	"errors"
	"slices"

	"go.uber.org/zap"

	"github.com/DoyleJ11/opsboard-relay/internal/audit"
	"github.com/DoyleJ11/opsboard-relay/internal/document"
	"github.com/DoyleJ11/opsboard-relay/internal/presence"
	"github.com/DoyleJ11/opsboard-relay/pkg/types"
)

// Store is the document store as the protocol sees it.
type Store interface {
	Join(ctx context.Context, boardID, connID string) (document.Board, error)
	Replace(ctx context.Context, boardID string, patch document.BoardPatch, origin string) (document.Board, error)
}

// Bus is the connection registry and fan-out the protocol drives.
type Bus interface {
	Register(connID string, out chan []byte)
	Unregister(connID string)
	Send(connID, event string, data any) (bool, error)
	PublishAll(event string, data any) (int, error)
}

// Observer is told which patch fields were rejected. A nil Observer is allowed.
type Observer interface {
	Rejected(fields []string)
}

type State int

const (
	StateConnected State = iota
	StateJoined
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateJoined:
		return "joined"
	case StateDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// Session is the protocol state of one connection. It is owned by the
// goroutine reading that connection.
type Session struct {
	ID     string
	state  State
	boards []string
}

func (s *Session) State() State { return s.state }

// Boards lists the board ids joined so far, in join order.
func (s *Session) Boards() []string { return slices.Clone(s.boards) }

type PresenceList struct {
	Users []presence.Record `json:"users"`
}

// Handler binds the store, the bus and the side channels into the push
// protocol. It holds no per-connection state itself.
type Handler struct {
	store    Store
	bus      Bus
	presence *presence.Registry
	audit    *audit.Log
	obs      Observer
	log      *zap.Logger
}

func NewHandler(store Store, bus Bus, pr *presence.Registry, al *audit.Log, obs Observer, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{store: store, bus: bus, presence: pr, audit: al, obs: obs, log: log.Named("protocol")}
}

// Connect registers the outbox; frames for this connection land there until
// Disconnect or eviction closes it.
func (h *Handler) Connect(connID string, out chan []byte) *Session {
	h.bus.Register(connID, out)
	return &Session{ID: connID, state: StateConnected}
}

// Handle decodes and dispatches one raw frame. Failures are reported to the
// sender as an error event and returned for logging.
func (h *Handler) Handle(ctx context.Context, s *Session, raw []byte) error {
	msg, event, err := Decode(raw)
	if err != nil {
		h.reportError(s, event, err, nil)
		return err
	}
	return h.Dispatch(ctx, s, msg)
}

func (h *Handler) Dispatch(ctx context.Context, s *Session, msg ClientMessage) error {
	if s.state == StateDisconnected {
		return ErrDisconnected
	}
	if msg == nil {
		return ErrUnknownEvent
	}
	var err error
	switch m := msg.(type) {
	case JoinBoard:
		err = h.join(ctx, s, m.BoardID)
	case NodesUpdate:
		err = h.replace(ctx, s, m.Event(), m.BoardID, m.Patch, m.Rejected)
	case Graph3DUpdate:
		err = h.replace(ctx, s, m.Event(), m.BoardID, m.Patch, m.Rejected)
	case PresenceUpdate:
		h.presence.Upsert(presence.Record{
			ConnID:   s.ID,
			Username: m.Username,
			Role:     m.Role,
			Location: m.Location,
		})
		h.broadcastPresence()
	case LogAction:
		entry := h.audit.Append(audit.Entry{
			Action:  m.Action,
			Details: m.Details,
			User:    m.User,
			Role:    m.Role,
		})
		if _, err := h.bus.PublishAll(types.EventLogAction, entry); err != nil {
			h.log.Error("encode log_action", zap.Error(err))
		}
	default:
		err = ErrUnknownEvent
	}
	if err != nil {
		h.reportError(s, msg.Event(), err, nil)
	}
	return err
}

func (h *Handler) join(ctx context.Context, s *Session, boardID string) error {
	// The board pushes the snapshot itself, in order with its broadcasts.
	if _, err := h.store.Join(ctx, boardID, s.ID); err != nil {
		return err
	}
	if !slices.Contains(s.boards, boardID) {
		s.boards = append(s.boards, boardID)
	}
	s.state = StateJoined
	return nil
}

func (h *Handler) replace(ctx context.Context, s *Session, event, boardID string, p document.BoardPatch, rejected error) error {
	if rejected != nil {
		fields := document.RejectedFields(rejected)
		if h.obs != nil {
			h.obs.Rejected(fields)
		}
		h.reportError(s, event, rejected, fields)
	}
	if p.Empty() {
		return nil
	}
	_, err := h.store.Replace(ctx, boardID, p, s.ID)
	return err
}

// Disconnect is terminal. Presence is cleared and every subscription drops;
// other connections only see the presence list change.
func (h *Handler) Disconnect(s *Session) {
	if s.state == StateDisconnected {
		return
	}
	s.state = StateDisconnected
	h.bus.Unregister(s.ID)
	if h.presence.Remove(s.ID) {
		h.broadcastPresence()
	}
}

func (h *Handler) broadcastPresence() {
	if _, err := h.bus.PublishAll(types.EventPresenceList, PresenceList{Users: h.presence.List()}); err != nil {
		h.log.Error("encode presence list", zap.Error(err))
	}
}

func (h *Handler) reportError(s *Session, event string, err error, rejected []string) {
	payload := types.ErrorPayload{Event: event, Message: err.Error(), Rejected: rejected}
	if _, serr := h.bus.Send(s.ID, types.EventError, payload); serr != nil {
		h.log.Error("encode error event", zap.Error(serr))
	}
	level := zap.DebugLevel
	if !errors.Is(err, ErrMalformed) && !errors.Is(err, ErrUnknownEvent) && rejected == nil {
		level = zap.WarnLevel
	}
	h.log.Check(level, "message rejected").Write(
		zap.String("conn", s.ID),
		zap.String("event", event),
		zap.Error(err),
	)
}
