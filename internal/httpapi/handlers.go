package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/opsboard-relay/internal/audit"
	"github.com/DoyleJ11/opsboard-relay/internal/document"
	"github.com/DoyleJ11/opsboard-relay/internal/hub"
	"github.com/DoyleJ11/opsboard-relay/internal/presence"
	"github.com/DoyleJ11/opsboard-relay/internal/telemetry"
	"github.com/DoyleJ11/opsboard-relay/internal/validation"
	"github.com/DoyleJ11/opsboard-relay/pkg/types"
)

const maxBodyBytes = 8 << 20

// Store is the document store behind the HTTP surface.
type Store interface {
	Snapshot(ctx context.Context, id string) (document.Board, error)
	Replace(ctx context.Context, id string, patch document.BoardPatch, origin string) (document.Board, error)
	GameConfig(ctx context.Context) (document.GameConfig, error)
	ReplaceGameConfig(ctx context.Context, patch document.GameConfigPatch) (document.GameConfig, error)
	Stats(ctx context.Context) (hub.Stats, error)
}

// Broadcaster pushes an event to every connection.
type Broadcaster interface {
	PublishAll(event string, data any) (int, error)
}

// RejectObserver counts rejected patch fields. A nil RejectObserver is allowed.
type RejectObserver interface {
	Rejected(fields []string)
}

type BoardResponse struct {
	document.Board
	Rejected []string `json:"rejected,omitempty"`
}

type GameConfigResponse struct {
	document.GameConfig
	Rejected []string `json:"rejected,omitempty"`
}

type LogsResponse struct {
	Logs    []audit.Entry    `json:"logs"`
	Backend []telemetry.Line `json:"backend"`
	Game    []telemetry.Line `json:"game"`
}

type UsersResponse struct {
	Users   []presence.Record `json:"users"`
	Players []presence.Player `json:"players"`
}

// GameLogsRequest is what a game server posts to /api/roblox/logs.
type GameLogsRequest struct {
	ServerID string           `json:"serverId" validate:"required,max=128"`
	Logs     []telemetry.Line `json:"logs"`
}

// PlayersRequest is what a game server posts to /api/roblox/players.
type PlayersRequest struct {
	ServerID string            `json:"serverId" validate:"required,max=128"`
	Players  []presence.Player `json:"players"`
}

type PlayersUpdate struct {
	ServerID string            `json:"serverId"`
	Players  []presence.Player `json:"players"`
}

type Handlers struct {
	store     Store
	bus       Broadcaster
	presence  *presence.Registry
	audit     *audit.Log
	telemetry *telemetry.Stream
	obs       RejectObserver
	log       *zap.Logger
	started   time.Time
}

func NewHandlers(d Deps) *Handlers {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Handlers{
		store:     d.Store,
		bus:       d.Bus,
		presence:  d.Presence,
		audit:     d.Audit,
		telemetry: d.Telemetry,
		obs:       d.Metrics,
		log:       log.Named("http"),
		started:   time.Now(),
	}
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.Health{
		Status: "ok",
		Uptime: time.Since(h.started).Seconds(),
	})
}

func (h *Handlers) GetBoard(w http.ResponseWriter, r *http.Request) {
	b, err := h.store.Snapshot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// PutBoard replaces the fields present in the body. Fields of the wrong
// shape are named in the response and the rest still apply.
func (h *Handlers) PutBoard(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(w, r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	patch, perr := document.ParseBoardPatch(raw)
	if errors.Is(perr, document.ErrNotObject) {
		writeError(w, h.log, badRequest(perr.Error(), perr))
		return
	}
	rejected := document.RejectedFields(perr)
	if h.obs != nil && len(rejected) > 0 {
		h.obs.Rejected(rejected)
	}
	if patch.Empty() && len(rejected) > 0 {
		writeError(w, h.log, &APIError{
			Status:   http.StatusUnprocessableEntity,
			Message:  "no valid fields in patch",
			Rejected: rejected,
			Err:      perr,
		})
		return
	}

	b, err := h.store.Replace(r.Context(), chi.URLParam(r, "id"), patch, "")
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, BoardResponse{Board: b, Rejected: rejected})
}

func (h *Handlers) GetGameConfig(w http.ResponseWriter, r *http.Request) {
	c, err := h.store.GameConfig(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handlers) PostGameConfig(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(w, r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	patch, perr := document.ParseGameConfigPatch(raw)
	if errors.Is(perr, document.ErrNotObject) {
		writeError(w, h.log, badRequest(perr.Error(), perr))
		return
	}
	rejected := document.RejectedFields(perr)
	if h.obs != nil && len(rejected) > 0 {
		h.obs.Rejected(rejected)
	}
	if patch.Empty() && len(rejected) > 0 {
		writeError(w, h.log, &APIError{
			Status:   http.StatusUnprocessableEntity,
			Message:  "no valid fields in patch",
			Rejected: rejected,
			Err:      perr,
		})
		return
	}

	c, err := h.store.ReplaceGameConfig(r.Context(), patch)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	h.log.Info("game config replaced", zap.Int("version", c.Version), zap.Strings("rejected", rejected))
	writeJSON(w, http.StatusOK, GameConfigResponse{GameConfig: c, Rejected: rejected})
}

func (h *Handlers) AdminLogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, LogsResponse{
		Logs:    h.audit.Entries(),
		Backend: h.telemetry.BackendLines(),
		Game:    h.telemetry.GameLines(),
	})
}

func (h *Handlers) AdminUsers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, UsersResponse{
		Users:   h.presence.List(),
		Players: h.presence.Players(),
	})
}

func (h *Handlers) AdminStats(w http.ResponseWriter, r *http.Request) {
	s, err := h.store.Stats(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// GameLogs records each posted line on the game stream, stamped with the
// reporting server.
func (h *Handlers) GameLogs(w http.ResponseWriter, r *http.Request) {
	var req GameLogsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		writeError(w, h.log, badRequest(err.Error(), err))
		return
	}
	if err := validation.Slice(req.Logs); err != nil {
		writeError(w, h.log, badRequest(err.Error(), err))
		return
	}
	for _, l := range req.Logs {
		l.ServerID = req.ServerID
		h.telemetry.Game(l)
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"accepted": len(req.Logs)})
}

// Players replaces the roster and tells every connection about it.
func (h *Handlers) Players(w http.ResponseWriter, r *http.Request) {
	var req PlayersRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		writeError(w, h.log, badRequest(err.Error(), err))
		return
	}
	if err := validation.Slice(req.Players); err != nil {
		writeError(w, h.log, badRequest(err.Error(), err))
		return
	}
	for i := range req.Players {
		req.Players[i].ServerID = req.ServerID
	}
	if req.Players == nil {
		req.Players = []presence.Player{}
	}
	h.presence.SetPlayers(req.Players)
	if _, err := h.bus.PublishAll(types.EventPlayersUpdate, PlayersUpdate{ServerID: req.ServerID, Players: req.Players}); err != nil {
		h.log.Error("broadcast players failed", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, map[string]int{"players": len(req.Players)})
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, &APIError{Status: http.StatusRequestEntityTooLarge, Message: "request body too large", Err: err}
		}
		return nil, badRequest("could not read request body", err)
	}
	return raw, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	raw, err := readBody(w, r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return badRequest("invalid JSON body", err)
	}
	return nil
}
