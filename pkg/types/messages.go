package types

import "encoding/json"

// Every push-channel message, both directions, is one text frame:
//   { "event": string, "data": object }

// Client -> Server
// join_board:
//   boardId: string
//
// nodes_update (any subset of the list fields):
//   boardId: string
//   nodes?: object[]
//   edges?: object[]
//   paths?: object[]
//
// graph3d_update:
//   boardId: string
//   nodes: GraphNode[]   // id | label | position [x,y,z] | type? | color? | tags? | description?
//   edges: GraphEdge[]   // id | a | b | color?
//
// presence_update:
//   username: string
//   role?: string
//   location?: string
//
// log_action:
//   action: string
//   details?: string
//   user?: string
//   role?: string

const (
	EventJoinBoard      = "join_board"
	EventNodesUpdate    = "nodes_update"
	EventGraph3DUpdate  = "graph3d_update"
	EventPresenceUpdate = "presence_update"
	EventLogAction      = "log_action"
)

// Envelope is the undecoded form of a frame.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type JoinBoard struct {
	BoardID string `json:"boardId" validate:"required,max=128"`
}

type PresenceUpdate struct {
	Username string `json:"username" validate:"required,max=64"`
	Role     string `json:"role,omitempty" validate:"max=32"`
	Location string `json:"location,omitempty" validate:"max=256"`
}

type LogAction struct {
	Action  string `json:"action" validate:"required,max=128"`
	Details string `json:"details,omitempty" validate:"max=2048"`
	User    string `json:"user,omitempty" validate:"max=64"`
	Role    string `json:"role,omitempty" validate:"max=32"`
}
