package pubsub

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Frame is the wire envelope for every server push.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Encode marshals a frame once so it can be fanned out as bytes.
func Encode(event string, data any) ([]byte, error) {
	return json.Marshal(Frame{Event: event, Data: data})
}

// EvictHook observes subscribers dropped for a full outbox.
type EvictHook func(connID string)

// Bus fans frames out to registered connections by topic. Sends never block:
// a connection whose outbox is full is evicted and its outbox closed, which
// tells the transport to hang up so the client reconnects and re-joins.
type Bus struct {
	mu      sync.Mutex
	conns   map[string]*sub
	topics  map[string]map[string]struct{}
	log     *zap.Logger
	onEvict EvictHook
}

type sub struct {
	out    chan []byte
	topics map[string]struct{}
}

func New(log *zap.Logger, onEvict EvictHook) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{
		conns:   make(map[string]*sub),
		topics:  make(map[string]map[string]struct{}),
		log:     log.Named("pubsub"),
		onEvict: onEvict,
	}
}

// Register makes connID addressable. The bus owns closing out from now on.
func (b *Bus) Register(connID string, out chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if old, ok := b.conns[connID]; ok {
		b.dropLocked(connID, old)
	}
	b.conns[connID] = &sub{out: out, topics: make(map[string]struct{})}
}

// Unregister drops every subscription of connID and closes its outbox.
func (b *Bus) Unregister(connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.conns[connID]; ok {
		b.dropLocked(connID, s)
	}
}

// Join is idempotent. It reports false for an unknown connection.
func (b *Bus) Join(connID, topic string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.conns[connID]
	if !ok {
		return false
	}
	s.topics[topic] = struct{}{}
	members := b.topics[topic]
	if members == nil {
		members = make(map[string]struct{})
		b.topics[topic] = members
	}
	members[connID] = struct{}{}
	return true
}

func (b *Bus) Subscribers(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics[topic])
}

func (b *Bus) Connections() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

// Publish delivers to every subscriber of topic except exceptConnID and
// returns how many outboxes accepted the frame. No subscribers is a no-op.
func (b *Bus) Publish(topic, event string, data any, exceptConnID string) (int, error) {
	frame, err := Encode(event, data)
	if err != nil {
		return 0, err
	}
	b.mu.Lock()
	targets := make([]string, 0, len(b.topics[topic]))
	for id := range b.topics[topic] {
		if id != exceptConnID {
			targets = append(targets, id)
		}
	}
	sent, evicted := b.deliverLocked(targets, frame)
	b.mu.Unlock()
	b.reportEvicted(evicted, event)
	return sent, nil
}

// PublishAll delivers to every registered connection.
func (b *Bus) PublishAll(event string, data any) (int, error) {
	frame, err := Encode(event, data)
	if err != nil {
		return 0, err
	}
	b.mu.Lock()
	targets := make([]string, 0, len(b.conns))
	for id := range b.conns {
		targets = append(targets, id)
	}
	sent, evicted := b.deliverLocked(targets, frame)
	b.mu.Unlock()
	b.reportEvicted(evicted, event)
	return sent, nil
}

// Send delivers to a single connection.
func (b *Bus) Send(connID, event string, data any) (bool, error) {
	frame, err := Encode(event, data)
	if err != nil {
		return false, err
	}
	b.mu.Lock()
	sent, evicted := b.deliverLocked([]string{connID}, frame)
	b.mu.Unlock()
	b.reportEvicted(evicted, event)
	return sent == 1, nil
}

func (b *Bus) deliverLocked(targets []string, frame []byte) (sent int, evicted []string) {
	for _, id := range targets {
		s, ok := b.conns[id]
		if !ok {
			continue
		}
		select {
		case s.out <- frame:
			sent++
		default:
			b.dropLocked(id, s)
			evicted = append(evicted, id)
		}
	}
	return sent, evicted
}

func (b *Bus) dropLocked(connID string, s *sub) {
	for t := range s.topics {
		delete(b.topics[t], connID)
		if len(b.topics[t]) == 0 {
			delete(b.topics, t)
		}
	}
	delete(b.conns, connID)
	close(s.out)
}

func (b *Bus) reportEvicted(ids []string, event string) {
	for _, id := range ids {
		b.log.Warn("evicted slow subscriber", zap.String("conn", id), zap.String("event", event))
		if b.onEvict != nil {
			b.onEvict(id)
		}
	}
}
