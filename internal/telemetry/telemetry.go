package telemetry

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/DoyleJ11/opsboard-relay/internal/ringbuf"
)

const (
	EventBackend = "log_backend"
	EventGame    = "log_game"

	DefaultCapacity = 500
)

// Line is one diagnostic line shown in the operator console.
type Line struct {
	ID        string         `json:"id"`
	Level     string         `json:"level" validate:"omitempty,oneof=debug info warn error"`
	Message   string         `json:"message" validate:"required"`
	Logger    string         `json:"logger,omitempty"`
	ServerID  string         `json:"serverId,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Broadcaster is the part of the bus the stream pushes lines through.
type Broadcaster interface {
	PublishAll(event string, data any) (int, error)
}

// Stream keeps the latest backend and game lines and pushes each new one to
// every connection.
type Stream struct {
	backend *ringbuf.Buffer[Line]
	game    *ringbuf.Buffer[Line]

	mu      sync.Mutex
	bus     Broadcaster
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

func New(capacity int) *Stream {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Stream{
		backend: ringbuf.New[Line](capacity),
		game:    ringbuf.New[Line](capacity),
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

// Attach sets the bus. Lines recorded before Attach are kept but not pushed.
func (s *Stream) Attach(bus Broadcaster) {
	s.mu.Lock()
	s.bus = bus
	s.mu.Unlock()
}

func (s *Stream) Backend(l Line) Line { return s.record(s.backend, EventBackend, l) }

func (s *Stream) Game(l Line) Line { return s.record(s.game, EventGame, l) }

func (s *Stream) BackendLines() []Line { return s.backend.Snapshot() }

func (s *Stream) GameLines() []Line { return s.game.Snapshot() }

func (s *Stream) record(buf *ringbuf.Buffer[Line], event string, l Line) Line {
	s.mu.Lock()
	if l.Timestamp.IsZero() {
		l.Timestamp = s.now().UTC()
	}
	if l.Level == "" {
		l.Level = "info"
	}
	l.ID = ulid.MustNew(ulid.Timestamp(l.Timestamp), s.entropy).String()
	bus := s.bus
	s.mu.Unlock()

	buf.Push(l)
	if bus != nil {
		_, _ = bus.PublishAll(event, l)
	}
	return l
}
