package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DoyleJ11/opsboard-relay/internal/document"
	"github.com/DoyleJ11/opsboard-relay/internal/validation"
	"github.com/DoyleJ11/opsboard-relay/pkg/types"
)

var (
	ErrUnknownEvent = errors.New("unknown event")
	ErrMalformed    = errors.New("malformed message")
	ErrDisconnected = errors.New("session is disconnected")
)

// ClientMessage is one decoded frame from a connection. The set of variants
// is closed.
type ClientMessage interface {
	isClientMessage()
	Event() string
}

type JoinBoard struct {
	BoardID string
}

// NodesUpdate and Graph3DUpdate carry the valid part of the patch. Rejected
// holds the per-field errors for the rest, if any.
type NodesUpdate struct {
	BoardID  string
	Patch    document.BoardPatch
	Rejected error
}

type Graph3DUpdate struct {
	BoardID  string
	Patch    document.BoardPatch
	Rejected error
}

type PresenceUpdate struct {
	types.PresenceUpdate
}

type LogAction struct {
	types.LogAction
}

func (JoinBoard) isClientMessage()      {}
func (NodesUpdate) isClientMessage()    {}
func (Graph3DUpdate) isClientMessage()  {}
func (PresenceUpdate) isClientMessage() {}
func (LogAction) isClientMessage()      {}

func (JoinBoard) Event() string      { return types.EventJoinBoard }
func (NodesUpdate) Event() string    { return types.EventNodesUpdate }
func (Graph3DUpdate) Event() string  { return types.EventGraph3DUpdate }
func (PresenceUpdate) Event() string { return types.EventPresenceUpdate }
func (LogAction) Event() string      { return types.EventLogAction }

// Decode parses one frame. The returned event name is set whenever the
// envelope itself was readable, so errors can be attributed.
func Decode(raw []byte) (ClientMessage, string, error) {
	var env types.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	msg, err := decodeData(env.Event, env.Data)
	return msg, env.Event, err
}

func decodeData(event string, data json.RawMessage) (ClientMessage, error) {
	switch event {
	case types.EventJoinBoard:
		id, err := boardID(data)
		if err != nil {
			return nil, err
		}
		return JoinBoard{BoardID: id}, nil

	case types.EventNodesUpdate:
		id, err := boardID(data)
		if err != nil {
			return nil, err
		}
		p, perr := document.ParseBoardPatch(data)
		if errors.Is(perr, document.ErrNotObject) {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, perr)
		}
		return NodesUpdate{BoardID: id, Patch: p, Rejected: perr}, nil

	case types.EventGraph3DUpdate:
		id, err := boardID(data)
		if err != nil {
			return nil, err
		}
		p, perr := document.ParseGraph3D(data)
		return Graph3DUpdate{BoardID: id, Patch: p, Rejected: perr}, nil

	case types.EventPresenceUpdate:
		var m types.PresenceUpdate
		if err := unmarshalValid(data, &m); err != nil {
			return nil, err
		}
		return PresenceUpdate{m}, nil

	case types.EventLogAction:
		var m types.LogAction
		if err := unmarshalValid(data, &m); err != nil {
			return nil, err
		}
		return LogAction{m}, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownEvent, event)
}

func boardID(data json.RawMessage) (string, error) {
	var j types.JoinBoard
	if err := unmarshalValid(data, &j); err != nil {
		return "", err
	}
	return j.BoardID, nil
}

func unmarshalValid(data json.RawMessage, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := validation.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}
