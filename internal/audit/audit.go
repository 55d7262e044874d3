package audit

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/DoyleJ11/opsboard-relay/internal/ringbuf"
)

const DefaultCapacity = 200

type Entry struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Details   string    `json:"details,omitempty"`
	User      string    `json:"user,omitempty"`
	Role      string    `json:"role,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Log keeps the most recent entries in arrival order. Ids are ULIDs so they
// sort the same way the entries arrived.
type Log struct {
	buf     *ringbuf.Buffer[Entry]
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		buf:     ringbuf.New[Entry](capacity),
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

// Append stamps e with an id and timestamp and stores it.
func (l *Log) Append(e Entry) Entry {
	l.mu.Lock()
	ts := l.now().UTC()
	e.ID = ulid.MustNew(ulid.Timestamp(ts), l.entropy).String()
	e.Timestamp = ts
	l.buf.Push(e)
	l.mu.Unlock()
	return e
}

// Entries returns a copy of the stored entries, oldest first.
func (l *Log) Entries() []Entry { return l.buf.Snapshot() }

func (l *Log) Len() int { return l.buf.Len() }
