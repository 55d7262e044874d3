package telemetry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type fakeBus struct {
	mu     sync.Mutex
	events []string
}

func (b *fakeBus) PublishAll(event string, _ any) (int, error) {
	b.mu.Lock()
	b.events = append(b.events, event)
	b.mu.Unlock()
	return 1, nil
}

func TestStream_BoundedAndPublished(t *testing.T) {
	s := New(3)
	bus := &fakeBus{}
	s.Backend(Line{Message: "before attach"})
	s.Attach(bus)

	for _, m := range []string{"a", "b", "c"} {
		s.Game(Line{Message: m, ServerID: "srv-1"})
	}
	s.Game(Line{Message: "d", Level: "warn"})

	lines := s.GameLines()
	require.Len(t, lines, 3)
	assert.Equal(t, "b", lines[0].Message)
	assert.Equal(t, "warn", lines[2].Level)
	assert.Equal(t, "info", lines[0].Level)
	assert.NotEmpty(t, lines[0].ID)

	assert.Len(t, s.BackendLines(), 1)
	assert.Equal(t, []string{EventGame, EventGame, EventGame, EventGame}, bus.events)
}

func TestCore_ForwardsEnabledEntries(t *testing.T) {
	s := New(10)
	log := zap.New(s.Core(zapcore.InfoLevel))

	log.Debug("too quiet")
	log.Named("hub").With(zap.String("board", "x")).Info("board created", zap.Int("n", 2))
	log.Named("pubsub").Warn("evicted slow subscriber")

	lines := s.BackendLines()
	require.Len(t, lines, 1)
	assert.Equal(t, "board created", lines[0].Message)
	assert.Equal(t, "hub", lines[0].Logger)
	assert.Equal(t, "x", lines[0].Fields["board"])
	assert.EqualValues(t, 2, lines[0].Fields["n"])
}
