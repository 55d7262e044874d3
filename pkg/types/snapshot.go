package types

// Server -> Client
// nodes_update:      { boardId, nodes?, edges?, paths? }  only the fields that changed; all of them on join
// graph3d_update:    { boardId, nodes, edges }
// presence_list:     { users: PresenceRecord[] }        after any presence change, to everyone
// log_action:        AuditEntry                          to everyone
// log_backend:       LogLine                             to everyone
// log_game:          LogLine                             to everyone
// players_update:    { players: Player[] }               after a game server reports its roster
// config_update:     GameConfig                          after POST /game-config
// error:             { event, message, rejected? }      to the sender only

const (
	EventPresenceList  = "presence_list"
	EventPlayersUpdate = "players_update"
	EventConfigUpdate  = "config_update"
	EventLogBackend    = "log_backend"
	EventLogGame       = "log_game"
	EventError         = "error"
)

type ErrorPayload struct {
	Event    string   `json:"event,omitempty"`
	Message  string   `json:"message"`
	Rejected []string `json:"rejected,omitempty"`
}

// HTTP bodies

type Health struct {
	Status string  `json:"status"`
	Uptime float64 `json:"uptime"`
}

type APIError struct {
	Error    string   `json:"error"`
	Rejected []string `json:"rejected,omitempty"`
}
