package presence

import (
	"sort"
	"sync"
	"time"
)

// Record is what a connection last announced about itself.
type Record struct {
	ConnID    string    `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role,omitempty"`
	Location  string    `json:"location,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Player is one entry of the roster reported by a game server.
type Player struct {
	UserID   string `json:"userId" validate:"required"`
	Name     string `json:"name" validate:"required"`
	ServerID string `json:"serverId,omitempty"`
}

// Registry holds presence keyed by connection id plus the latest player
// roster. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	records map[string]Record
	players []Player
	now     func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{records: make(map[string]Record), now: time.Now}
}

// Upsert replaces any previous record for the connection.
func (r *Registry) Upsert(rec Record) Record {
	rec.Timestamp = r.now().UTC()
	r.mu.Lock()
	r.records[rec.ConnID] = rec
	r.mu.Unlock()
	return rec
}

// Remove reports whether the connection had announced itself.
func (r *Registry) Remove(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[connID]; !ok {
		return false
	}
	delete(r.records, connID)
	return true
}

// List is ordered by username, then connection id.
func (r *Registry) List() []Record {
	r.mu.RLock()
	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Username != out[j].Username {
			return out[i].Username < out[j].Username
		}
		return out[i].ConnID < out[j].ConnID
	})
	return out
}

func (r *Registry) SetPlayers(ps []Player) {
	cp := make([]Player, len(ps))
	copy(cp, ps)
	r.mu.Lock()
	r.players = cp
	r.mu.Unlock()
}

func (r *Registry) Players() []Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Player, len(r.players))
	copy(out, r.players)
	return out
}
